package extraction

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// transcriptionPrompt is shared by the LLM-backed extractors. The back-ends
// return prose, so the prompt pins them to verbatim transcription: the
// downstream parser owns all interpretation.
const transcriptionPrompt = `You are transcribing a photographed receipt or invoice. Read every piece of visible text in the image and write it out exactly as printed, one receipt line per output line, top to bottom.

Rules:
- Transcribe verbatim: keep store names, dates, item lines, quantities, prices, totals, and labels exactly as they appear.
- Preserve the line structure of the receipt. Do not merge lines.
- Do not summarize, interpret, translate, or reformat anything.
- Do not add any commentary before or after the transcription.
- If a character is unreadable, skip it rather than guessing a whole word.`

// normalizeImage converts the input to PNG bytes regardless of the source
// format. PDFs are rasterized (first page, which covers nearly all receipts),
// HEIC/HEIF photos are decoded with a pure Go decoder since the standard image
// package does not support them, and everything else goes through image.Decode.
func normalizeImage(data []byte, contentType string) ([]byte, error) {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))

	if mimeType == "application/pdf" {
		return pdfToPNG(data)
	}

	if mimeType == "image/png" && !isHEIC(data, mimeType) {
		return data, nil
	}

	var img image.Image
	var err error
	if isHEIC(data, mimeType) {
		img, err = heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC image: %w", err)
		}
	} else {
		img, _, err = image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding image (supported: JPEG, PNG, GIF, HEIC, PDF): %w", err)
		}
	}

	return encodePNG(img)
}

// pdfToPNG rasterizes the first page of a PDF.
func pdfToPNG(pdfData []byte) ([]byte, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}

	return encodePNG(img)
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// isHEIC detects HEIC/HEIF content from the ftyp box brand or the MIME type.
// Phone cameras frequently upload HEIC with a generic or wrong content type,
// so the magic bytes are checked first.
func isHEIC(data []byte, mimeType string) bool {
	if len(data) >= 12 && string(data[4:8]) == "ftyp" {
		switch string(data[8:12]) {
		case "heic", "heif", "mif1", "msf1":
			return true
		}
	}
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}
