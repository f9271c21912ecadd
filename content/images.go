package content

import (
	"bytes"
	"encoding/base64"
	"net/url"
	"path"
	"strings"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"epx/config"
)

// MIME types are derived from the reference extension only - sniffing bytes
// would occasionally produce a type the extension contradicts and readers
// trust the extension anyway.
var imageMimeTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
}

const fallbackImageMime = "application/octet-stream"

// inlineImages replaces local image references with embedded data URIs so the
// flattened document needs nothing from the unpacked directory tree.
// Unreadable or empty images keep their original reference - one broken
// illustration is no reason to drop a chapter.
func inlineImages(body *html.Node, doc *document, root string, cfg *config.ImagesConfig, log *zap.Logger) {
	fromDir := doc.dir()
	walkElements(body, func(n *html.Node) {
		if n.DataAtom != atom.Img {
			return
		}
		src := getAttr(n, "src")
		if src == "" || isRemoteImage(src) {
			return
		}

		data, mime, ok := loadImage(src, fromDir, root, cfg, log)
		if !ok {
			log.Debug("Leaving image reference as is", zap.String("document", doc.rel), zap.String("src", src))
			return
		}
		setAttr(n, "src", "data:"+mime+";base64,"+base64.StdEncoding.EncodeToString(data))
	})
}

func isRemoteImage(src string) bool {
	lower := strings.ToLower(src)
	return strings.HasPrefix(lower, "data:") ||
		strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://")
}

// loadImage resolves the reference against the referencing document location
// (or the extraction root for absolute paths) and reads the member bytes.
func loadImage(src, fromDir, root string, cfg *config.ImagesConfig, log *zap.Logger) ([]byte, string, bool) {
	rest, _, _ := strings.Cut(src, "#")
	p, _, _ := strings.Cut(rest, "?")
	if p == "" {
		return nil, "", false
	}
	if decoded, err := url.PathUnescape(p); err == nil {
		p = decoded
	}
	p = strings.ReplaceAll(p, `\`, "/")

	var rel string
	if strings.HasPrefix(p, "/") {
		rel = strings.TrimPrefix(p, "/")
	} else {
		rel = path.Join(fromDir, p)
	}

	data, err := readMember(root, rel)
	if err != nil || len(data) == 0 {
		return nil, "", false
	}

	mime, ok := imageMimeTypes[strings.ToLower(path.Ext(rel))]
	if !ok {
		mime = fallbackImageMime
	}

	if cfg.MaxWidth > 0 {
		if scaled, scaledMime, ok := downscale(data, mime, cfg); ok {
			return scaled, scaledMime, true
		}
	}
	return data, mime, true
}

// downscale bounds oversized raster images before inlining. Anything that
// cannot be decoded is inlined untouched - scaling is an optimization, not a
// gate.
func downscale(data []byte, mime string, cfg *config.ImagesConfig) ([]byte, string, bool) {
	if mime != "image/png" && mime != "image/jpeg" && mime != "image/gif" && mime != "image/webp" {
		return nil, "", false
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", false
	}
	if img.Bounds().Dx() <= cfg.MaxWidth {
		return nil, "", false
	}

	resized := imaging.Resize(img, cfg.MaxWidth, 0, imaging.Lanczos)

	buf := new(bytes.Buffer)
	switch mime {
	case "image/png":
		err = imaging.Encode(buf, resized, imaging.PNG)
	default:
		// gif and webp frames are re-encoded as jpeg, animation is pointless
		// in a flattened book anyway
		err = imaging.Encode(buf, resized, imaging.JPEG, imaging.JPEGQuality(cfg.JPEGQuality))
		mime = "image/jpeg"
	}
	if err != nil {
		return nil, "", false
	}
	return buf.Bytes(), mime, true
}
