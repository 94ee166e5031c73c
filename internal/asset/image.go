package asset

import (
	"bytes"
	"image"
	_ "image/gif" // register GIF decoder
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	exif "github.com/dsoprea/go-exif/v3"
	"golang.org/x/image/draw"
)

const (
	jpegQuality = 85

	// maxDescribeSize bounds how much of a cached file is read to look
	// for EXIF data.
	maxDescribeSize = 8 * 1024 * 1024
)

// downscale shrinks PNG and JPEG images wider than maxWidth, keeping the
// aspect ratio and the format. Anything else, including GIFs (which may be
// animated) and undecodable data, is returned unchanged.
func downscale(data []byte, maxWidth int) []byte {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxWidth || (format != "jpeg" && format != "png") {
		return data
	}

	newH := max(h*maxWidth/w, 1)
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	switch format {
	case "jpeg":
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality})
	case "png":
		err = png.Encode(&buf, dst)
	}
	if err != nil {
		return data
	}
	return buf.Bytes()
}

// Describe returns the EXIF ImageDescription of a localized image, or an
// empty string. It is used as a label when an <img> has no alt text.
func (s *Store) Describe(res Result) string {
	if !res.Local() {
		return ""
	}
	name := res.Asset.LocalName
	if desc, ok := s.descriptions[name]; ok {
		return desc
	}

	f, err := os.Open(filepath.Join(s.dir, name)) //nolint:gosec // name is derived by the store
	if err != nil {
		return ""
	}
	defer f.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(io.LimitReader(f, maxDescribeSize)); err != nil {
		return ""
	}
	desc := describeBytes(buf.Bytes())
	s.descriptions[name] = desc
	return desc
}

// describeBytes extracts the ImageDescription tag from raw image bytes.
func describeBytes(data []byte) string {
	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil || rawExif == nil {
		return ""
	}

	entries, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		return ""
	}

	for _, entry := range entries {
		if entry.TagName == "ImageDescription" {
			return strings.Join(strings.Fields(strings.Trim(entry.Formatted, "\x00")), " ")
		}
	}
	return ""
}
