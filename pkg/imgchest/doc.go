// Package imgchest is a client for imgchest.com posts.
//
// Posts can be read two ways. GetPost uses the authenticated JSON API and
// needs a token. GetScrapedPost reads the public post page anonymously. Both
// return the same models.Post and both load every image before returning,
// following API cursors or the page's "Load N more" request as needed.
//
// Basic usage:
//
//	client := imgchest.NewClient(imgchest.WithToken(os.Getenv("IMGCHEST_TOKEN")))
//	post, err := client.GetPost(ctx, "3qe4gdvj4j2")
//
//	anon := imgchest.NewClient()
//	post, err = anon.GetScrapedPost(ctx, "https://imgchest.com/p/3qe4gdvj4j2")
//
// Uploads go through a single-use builder:
//
//	b := imgchest.NewCreatePostBuilder().Title("Holiday").Image(file)
//	post, err := client.CreatePost(ctx, b)
//
// The client never retries and never logs unless a logger is injected.
package imgchest
