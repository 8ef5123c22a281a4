// Package assembler turns the first page of a post plus its continuation
// tokens into one fully loaded post.
//
// A Source supplies pages for exactly one retrieval mode. The assembler
// refuses tokens produced by the other mode, caps the number of follow-up
// fetches, and checks that image positions stay dense across pages.
// A failed assembly never returns a partial post.
//
//	a := assembler.New(assembler.WithMaxPages(cfg.Assembly.MaxPages))
//	post, err := a.Assemble(ctx, src, "3qe4gdvj4j2")
package assembler
