// Package models contains shared types for the mirror agent: conversation
// content, commands, session state and the error taxonomy.
package models

import "encoding/json"

// Role tags a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockType is the variant tag of a ContentBlock.
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockImage      BlockType = "image"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
)

// ContentBlock is one element of a message. Different fields are populated
// depending on Type.
//
// Variant field mapping:
//
//	Text:       Text
//	Image:      ImageRef, MediaType
//	ToolUse:    ToolUseID, ToolName, Input
//	ToolResult: ToolUseID, Text, IsError
//
// Images are stored by reference into the screenshot store so that the
// conversation stays small enough to live in workflow state.
type ContentBlock struct {
	Type BlockType `json:"type"`

	Text string `json:"text,omitempty"`

	ImageRef  string `json:"image_ref,omitempty"`
	MediaType string `json:"media_type,omitempty"`

	ToolUseID string `json:"tool_use_id,omitempty"`
	ToolName  string `json:"tool_name,omitempty"`
	// Input is the tool input exactly as the model produced it.
	Input json.RawMessage `json:"input,omitempty"`

	IsError bool `json:"is_error,omitempty"`
}

// TextBlock returns a text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

// ImageBlock returns an image block referencing a stored screenshot.
func ImageBlock(ref, mediaType string) ContentBlock {
	return ContentBlock{Type: BlockImage, ImageRef: ref, MediaType: mediaType}
}

// ToolUseBlock returns a tool_use block.
func ToolUseBlock(id, name string, input json.RawMessage) ContentBlock {
	return ContentBlock{Type: BlockToolUse, ToolUseID: id, ToolName: name, Input: input}
}

// ToolResultBlock returns a tool_result block answering the tool use with the given id.
func ToolResultBlock(toolUseID, text string, isError bool) ContentBlock {
	return ContentBlock{Type: BlockToolResult, ToolUseID: toolUseID, Text: text, IsError: isError}
}

// Message is one turn of the conversation.
type Message struct {
	Role    Role           `json:"role"`
	Content []ContentBlock `json:"content"`
}

// ToolUses returns the tool_use blocks of the message in order.
func (m Message) ToolUses() []ContentBlock {
	var uses []ContentBlock
	for _, b := range m.Content {
		if b.Type == BlockToolUse {
			uses = append(uses, b)
		}
	}
	return uses
}

// ToolResults returns the tool_result blocks of the message in order.
func (m Message) ToolResults() []ContentBlock {
	var results []ContentBlock
	for _, b := range m.Content {
		if b.Type == BlockToolResult {
			results = append(results, b)
		}
	}
	return results
}

// ImageRefs returns the screenshot references carried by the message.
func (m Message) ImageRefs() []string {
	var refs []string
	for _, b := range m.Content {
		if b.Type == BlockImage && b.ImageRef != "" {
			refs = append(refs, b.ImageRef)
		}
	}
	return refs
}
