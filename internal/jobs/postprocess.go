package jobs

import (
	"context"
	"strings"
)

// Artifact is one generated output on its way to the blob store.
type Artifact struct {
	Data []byte
	MIME string
	Ext  string
}

// PostProcessor transforms a generated artifact before it is stored.
type PostProcessor interface {
	Process(ctx context.Context, in Artifact) (Artifact, error)
}

// PassthroughProcessor keeps the bytes untouched and fills in the extension.
type PassthroughProcessor struct{}

// Process implements PostProcessor.
func (PassthroughProcessor) Process(ctx context.Context, in Artifact) (Artifact, error) {
	if err := ctx.Err(); err != nil {
		return Artifact{}, err
	}
	if in.Ext == "" {
		in.Ext = extensionForMIME(in.MIME)
	}
	return in, nil
}

func extensionForMIME(mime string) string {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	switch mime {
	case "image/jpeg", "image/jpg", "jpeg", "jpg":
		return "jpg"
	case "image/webp", "webp":
		return "webp"
	case "image/gif", "gif":
		return "gif"
	default:
		return "png"
	}
}
