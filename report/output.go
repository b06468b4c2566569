package report

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/lunara/reportmesh/core"
)

// OutputType discriminates OutputEvent variants.
type OutputType string

// Output event variants.
const (
	OutputNarration  OutputType = "narration"
	OutputThought    OutputType = "thought"
	OutputCode       OutputType = "code"
	OutputCodeResult OutputType = "code_result"
	OutputImage      OutputType = "image"
	OutputBlock      OutputType = "block"
	OutputStatus     OutputType = "status"
	OutputError      OutputType = "error"
	OutputDone       OutputType = "done"
)

// OutputEvent is one item of the stream returned by Engine.Generate. Type
// selects which fields are meaningful:
//
//	narration    Text, Author
//	thought      Text
//	code         Text, Language
//	code_result  Output, Outcome
//	image        MimeType, Data, SourceKey
//	block        Block
//	status       Text
//	error        Message
//	done         Blocks (every block produced by the turn)
type OutputEvent struct {
	Type      OutputType
	Text      string
	Author    string
	Language  string
	Output    string
	Outcome   string
	MimeType  string
	Data      []byte
	SourceKey string
	Block     *core.Block
	Blocks    []core.Block
	Message   string
}

func narrationEvent(text, author string) OutputEvent {
	return OutputEvent{Type: OutputNarration, Text: text, Author: author}
}

func thoughtEvent(text string) OutputEvent {
	return OutputEvent{Type: OutputThought, Text: text}
}

func codeEvent(code, language string) OutputEvent {
	return OutputEvent{Type: OutputCode, Text: code, Language: language}
}

func codeResultEvent(output, outcome string) OutputEvent {
	return OutputEvent{Type: OutputCodeResult, Output: output, Outcome: outcome}
}

func imageEvent(a Arrival) OutputEvent {
	return OutputEvent{Type: OutputImage, MimeType: a.MimeType, Data: a.Data, SourceKey: a.Key}
}

func blockEvent(b core.Block) OutputEvent {
	return OutputEvent{Type: OutputBlock, Block: &b}
}

func statusEvent(text string) OutputEvent {
	return OutputEvent{Type: OutputStatus, Text: text}
}

func errorEvent(err error) OutputEvent {
	return OutputEvent{Type: OutputError, Message: err.Error()}
}

func doneEvent(blocks []core.Block) OutputEvent {
	return OutputEvent{Type: OutputDone, Blocks: blocks}
}

// MarshalJSON renders the event as a flat object holding only the fields
// of its variant. Image data is base64 encoded.
func (e OutputEvent) MarshalJSON() ([]byte, error) {
	m := map[string]any{"type": e.Type}

	switch e.Type {
	case OutputNarration:
		m["text"] = e.Text
		m["author"] = e.Author
	case OutputThought, OutputStatus:
		m["text"] = e.Text
	case OutputCode:
		m["text"] = e.Text
		if e.Language != "" {
			m["language"] = e.Language
		}
	case OutputCodeResult:
		m["output"] = e.Output
		m["outcome"] = e.Outcome
	case OutputImage:
		m["mime_type"] = e.MimeType
		m["data"] = base64.StdEncoding.EncodeToString(e.Data)
		if e.SourceKey != "" {
			m["source_key"] = e.SourceKey
		}
	case OutputBlock:
		m["block"] = e.Block
	case OutputError:
		m["message"] = e.Message
	case OutputDone:
		blocks := e.Blocks
		if blocks == nil {
			blocks = []core.Block{}
		}

		m["blocks"] = blocks
	default:
		return nil, fmt.Errorf("unknown output event type %q", e.Type)
	}

	return json.Marshal(m)
}
