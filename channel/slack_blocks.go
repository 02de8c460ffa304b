package channel

import (
	"fmt"
	"strings"

	"github.com/slack-go/slack"
)

// Block Kit identifiers for the draft-issue flow.
const (
	blockIssueActions = "issue_actions"

	// ActionConfirmIssue confirms a draft issue.
	ActionConfirmIssue = "confirm_issue"
	// ActionEditIssue opens the edit modal.
	ActionEditIssue = "edit_issue"
	// ActionCancelIssue discards a draft issue.
	ActionCancelIssue = "cancel_issue"

	callbackEditIssueModal = "edit_issue_modal"
	blockTitle             = "title_block"
	inputTitle             = "title_input"
	blockDescription       = "description_block"
	inputDescription       = "description_input"
)

// EscapeMrkdwn escapes Slack mrkdwn control characters in user text.
// Must not be applied to URLs.
func EscapeMrkdwn(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

// EscapeLinkURL percent-encodes the pipe so a URL can sit inside a
// <url|label> mrkdwn link without terminating it early.
func EscapeLinkURL(u string) string {
	return strings.ReplaceAll(u, "|", "%7C")
}

func mrkdwn(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.MarkdownType, text, false, false)
}

func plainText(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.PlainTextType, text, false, false)
}

// DraftIssueBlocks renders a draft issue with confirm/edit/cancel buttons.
func DraftIssueBlocks(title, description string) []slack.Block {
	body := fmt.Sprintf("*Draft Issue*\n*Title:* %s\n*Description:* %s",
		EscapeMrkdwn(title), EscapeMrkdwn(description))

	confirm := slack.NewButtonBlockElement(ActionConfirmIssue, title, plainText("Create issue")).
		WithStyle(slack.StylePrimary)
	edit := slack.NewButtonBlockElement(ActionEditIssue, title, plainText("Edit"))
	cancel := slack.NewButtonBlockElement(ActionCancelIssue, title, plainText("Cancel")).
		WithStyle(slack.StyleDanger)

	return []slack.Block{
		slack.NewSectionBlock(mrkdwn(body), nil, nil),
		slack.NewActionBlock(blockIssueActions, confirm, edit, cancel),
	}
}

// IssueConfirmationBlocks renders the created-issue confirmation.
func IssueConfirmationBlocks(title, issueURL string) []slack.Block {
	body := fmt.Sprintf(":white_check_mark: Issue created: <%s|%s>",
		EscapeLinkURL(issueURL), EscapeMrkdwn(title))
	return []slack.Block{
		slack.NewSectionBlock(mrkdwn(body), nil, nil),
	}
}

// editIssueModal builds the edit-issue modal. privateMetadata carries the
// reply recipient ("<channel>" or "<channel>:<thread_ts>") through the
// round trip.
func editIssueModal(initialTitle, privateMetadata string) slack.ModalViewRequest {
	titleInput := slack.NewPlainTextInputBlockElement(plainText("Issue title"), inputTitle)
	titleInput.InitialValue = initialTitle

	descInput := slack.NewPlainTextInputBlockElement(plainText("Describe the issue"), inputDescription)
	descInput.Multiline = true

	titleBlock := slack.NewInputBlock(blockTitle, plainText("Title"), nil, titleInput)
	descBlock := slack.NewInputBlock(blockDescription, plainText("Description"), nil, descInput)
	descBlock.Optional = true

	return slack.ModalViewRequest{
		Type:            slack.VTModal,
		CallbackID:      callbackEditIssueModal,
		PrivateMetadata: privateMetadata,
		Title:           plainText("Edit issue"),
		Submit:          plainText("Save"),
		Close:           plainText("Cancel"),
		Blocks: slack.Blocks{
			BlockSet: []slack.Block{titleBlock, descBlock},
		},
	}
}
