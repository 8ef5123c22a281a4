package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowTokenGuide explains where to find an imgchest API token
func ShowTokenGuide(w io.Writer) {
	rule := strings.Repeat("=", 72)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "IMGCHEST API TOKEN")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Reading public posts works without a token (imgchest download, imgchest get --scrape).")
	fmt.Fprintln(w, "Creating, editing and reading posts through the API needs one.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  1. Log in at https://imgchest.com")
	fmt.Fprintln(w, "  2. Open your profile settings and find the API section")
	fmt.Fprintln(w, "  3. Generate a token and copy it")
	fmt.Fprintln(w, "  4. Run: imgchest auth login")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "The token can also be supplied with IMGCHEST_TOKEN or --token.")
	fmt.Fprintln(w, "Anyone holding it can act as your account. Do not share it.")
	fmt.Fprintln(w, rule)
}
