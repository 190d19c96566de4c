package analysis

import (
	"fmt"
	"strings"
)

// TextSystemInstruction asks the reasoner for a toxicity assessment
const TextSystemInstruction = `You are a content moderation assistant. Assess the user's text for toxicity and sexual content.
Reply with a single JSON object and nothing else:
{"toxicity": <number between 0 and 1>, "nsfwText": <true|false>, "summary": "<one sentence>"}`

// DecisionSystemInstruction asks the reasoner for the overall verdict
const DecisionSystemInstruction = `You are the final reviewer in a content moderation pipeline.
Given the findings collected so far, decide whether the submission is approved, flagged for human review, or rejected.
Also state whether the image (if any) is NSFW and whether the content depicts violence.
Reply with a single JSON object and nothing else:
{"decision": "approved|flagged|rejected", "summary": "<short explanation>", "nsfwImage": <true|false>, "violence": <true|false>}`

// ImageDescriptionPrompt is sent with an image to the vision capability
const ImageDescriptionPrompt = `Describe what this image shows for a content moderation review. ` +
	`Mention nudity, sexual content, violence, blood, gore, weapons, self-harm or other harmful material ` +
	`only if it is actually present. Do not list categories that are absent.`

// DecisionInput carries every signal gathered before the decision step
type DecisionInput struct {
	SubmissionType   string
	TextContent      string
	ImageDescription string
	Toxicity         float64
	NSFWText         bool
	TextSummary      string
}

// BuildDecisionPrompt renders the decision request
func BuildDecisionPrompt(in DecisionInput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Submission type: %s\n", in.SubmissionType)
	if in.TextContent != "" {
		fmt.Fprintf(&b, "Text content: %q\n", in.TextContent)
		fmt.Fprintf(&b, "Text toxicity score: %.2f\n", in.Toxicity)
		fmt.Fprintf(&b, "NSFW text: %t\n", in.NSFWText)
		if in.TextSummary != "" {
			fmt.Fprintf(&b, "Text analysis: %s\n", in.TextSummary)
		}
	}
	if in.ImageDescription != "" {
		fmt.Fprintf(&b, "Image description: %s\n", in.ImageDescription)
	}

	return b.String()
}
