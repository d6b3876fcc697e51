package generation

// Prompt templates for the three stages. The description seeds the post,
// the caption condenses it, the image prompt restyles it for rendering.
const (
	descriptionSystem = "You are a social media content writer. Write a short, vivid post description on the given topic. No hashtags, no emojis, plain text only."
	captionSystem     = "You are a social media content writer. Turn the given post description into a catchy one-line caption with two or three fitting hashtags."

	descriptionPrompt = "Write a post description about: "
	captionPrompt     = "Write a caption for this post: "
	imagePromptPrefix = "High quality square photo illustration for a social media post about: "
)

// Sentinel texts recorded when every text attempt fails. Publishing can
// still proceed with them unless the pipeline is configured to insist on
// generated text.
const (
	descriptionFallback = "error when generating post description"
	captionFallback     = "error when generating post caption"
)
