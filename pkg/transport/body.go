package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"strings"

	apperrors "imgchest/pkg/errors"
	"imgchest/pkg/models"
)

// Body produces a request payload. Encode is called once, after the auth check,
// so single-use payloads are never consumed by a request that cannot be sent.
type Body interface {
	Encode() (io.Reader, string, error)
}

type jsonBody struct{ v interface{} }

// JSONBody encodes v as application/json
func JSONBody(v interface{}) Body { return jsonBody{v: v} }

func (b jsonBody) Encode() (io.Reader, string, error) {
	data, err := json.Marshal(b.v)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode json body: %w", err)
	}
	return bytes.NewReader(data), "application/json", nil
}

type formBody struct{ values url.Values }

// FormBody encodes values as application/x-www-form-urlencoded
func FormBody(values url.Values) Body { return formBody{values: values} }

func (b formBody) Encode() (io.Reader, string, error) {
	return strings.NewReader(b.values.Encode()), "application/x-www-form-urlencoded", nil
}

// Field is an ordered multipart text field
type Field struct {
	Name  string
	Value string
}

// FilePart is a multipart file field
type FilePart struct {
	Name string
	File *models.UploadFile
}

type multipartBody struct {
	fields []Field
	files  []FilePart
}

// MultipartBody streams fields then files, in the given order, as multipart/form-data
func MultipartBody(fields []Field, files []FilePart) Body {
	return &multipartBody{fields: fields, files: files}
}

func (b *multipartBody) Encode() (io.Reader, string, error) {
	readers := make([]io.Reader, len(b.files))
	for i, part := range b.files {
		r, err := part.File.Take()
		if err != nil {
			closeReaders(readers[:i])
			return nil, "", &apperrors.ValidationError{Reason: apperrors.ValidationConsumed, Field: part.File.FileName}
		}
		readers[i] = r
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := b.write(mw, readers)
		if err == nil {
			err = mw.Close()
		}
		closeReaders(readers)
		pw.CloseWithError(err)
	}()

	return pr, mw.FormDataContentType(), nil
}

func (b *multipartBody) write(mw *multipart.Writer, readers []io.Reader) error {
	for _, f := range b.fields {
		if err := mw.WriteField(f.Name, f.Value); err != nil {
			return err
		}
	}
	for i, part := range b.files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			escapeQuotes(part.Name), escapeQuotes(part.File.FileName)))
		h.Set("Content-Type", part.File.ContentType)
		w, err := mw.CreatePart(h)
		if err != nil {
			return err
		}
		if _, err := io.Copy(w, readers[i]); err != nil {
			return fmt.Errorf("failed to stream %s: %w", part.File.FileName, err)
		}
	}
	return nil
}

func closeReaders(readers []io.Reader) {
	for _, r := range readers {
		if c, ok := r.(io.Closer); ok {
			c.Close()
		}
	}
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string { return quoteEscaper.Replace(s) }
