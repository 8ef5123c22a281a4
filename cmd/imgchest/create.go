package main

import (
	"github.com/spf13/cobra"
	"imgchest/pkg/imgchest"
	"imgchest/pkg/models"
)

var (
	createTitle     string
	createPrivacy   string
	createNSFW      bool
	createAnonymous bool
)

var createCmd = &cobra.Command{
	Use:   "create <file>...",
	Short: "Upload files as a new post",
	Long: `Upload one or more files as a new post and print the created post as JSON.

Files are uploaded in the order given. A title, when set, must be at
least three characters long. Needs an API token.`,
	Example: `  # Upload two images as a hidden post
  imgchest create a.png b.jpg --title "Holiday" --privacy hidden

  # Upload anonymously
  imgchest create clip.mp4 --anonymous`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCreate,
}

func init() {
	rootCmd.AddCommand(createCmd)

	createCmd.Flags().StringVarP(&createTitle, "title", "t", "", "post title")
	createCmd.Flags().StringVar(&createPrivacy, "privacy", "", "post privacy (public, hidden, secret)")
	createCmd.Flags().BoolVar(&createNSFW, "nsfw", false, "mark the post as not safe for work")
	createCmd.Flags().BoolVar(&createAnonymous, "anonymous", false, "do not attach the post to your account")
}

func runCreate(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(nil)
	if err != nil {
		return err
	}
	resolveToken(cfg, log)

	builder := imgchest.NewCreatePostBuilder().
		Anonymous(createAnonymous).
		NSFW(createNSFW)
	if createTitle != "" {
		builder.Title(createTitle)
	}
	if createPrivacy != "" {
		privacy, err := models.ParsePrivacy(createPrivacy)
		if err != nil {
			return err
		}
		builder.Privacy(privacy)
	}

	uploads := make([]*models.UploadFile, 0, len(args))
	defer func() {
		for _, u := range uploads {
			_ = u.Close()
		}
	}()
	for _, path := range args {
		u, err := models.UploadFileFromPath(path)
		if err != nil {
			return err
		}
		uploads = append(uploads, u)
		builder.Image(u)
	}

	client := imgchest.NewClientWithConfig(cfg, log)
	post, err := client.CreatePost(cmd.Context(), builder)
	if err != nil {
		return err
	}

	log.WithField("post", post.ID).Info("Post created")
	return printJSON(cmd.OutOrStdout(), post)
}
