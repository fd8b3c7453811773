package main

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/EdlinOrg/prominentcolor"
	"github.com/charmbracelet/bubbletea"
	"github.com/nfnt/resize"
	"github.com/oliamb/cutter"
	_ "golang.org/x/image/webp"
)

// Fixed Kitty image ID so each new cover replaces the previous one
const kittyImageID = 42

var coverClient = &http.Client{Timeout: 15 * time.Second}

// coverMsg is the result of loading a track's cover in the background
type coverMsg struct {
	url     string
	encoded string // Kitty-encoded cover
	color   string // Dominant color, empty unless requested
	err     error
}

// fetchCover reads cover art from an http(s) URL or a local path
func fetchCover(url string) ([]byte, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		data, err := os.ReadFile(strings.TrimPrefix(url, "file://"))
		if err != nil {
			return nil, fmt.Errorf("failed to read cover file: %w", err)
		}
		return data, nil
	}

	resp, err := coverClient.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download cover: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cover download failed with status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read cover data: %w", err)
	}
	return data, nil
}

// loadCoverCmd fetches and encodes a cover without blocking the UI
func loadCoverCmd(url string, extractColor bool) tea.Cmd {
	return func() (msg tea.Msg) {
		defer func() {
			// A malformed image must not take the player down
			if r := recover(); r != nil {
				msg = coverMsg{url: url, err: fmt.Errorf("cover processing panicked: %v", r)}
			}
		}()

		data, err := fetchCover(url)
		if err != nil {
			return coverMsg{url: url, err: err}
		}
		color, encoded, err := processArtwork(data, extractColor)
		return coverMsg{url: url, encoded: encoded, color: color, err: err}
	}
}

// decodeArtworkData decodes raw or base64-encoded image bytes
func decodeArtworkData(imgData []byte) (image.Image, error) {
	imageData := imgData
	if decoded, err := base64.StdEncoding.DecodeString(string(imgData)); err == nil {
		imageData = decoded
	}

	if len(imageData) == 0 {
		return nil, fmt.Errorf("empty image data")
	}

	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// cropSquare cuts the largest centered square out of img; web covers are rarely square
func cropSquare(img image.Image) (image.Image, error) {
	b := img.Bounds()
	if b.Dx() == b.Dy() {
		return img, nil
	}
	return cutter.Crop(img, cutter.Config{
		Width:   1,
		Height:  1,
		Mode:    cutter.Centered,
		Options: cutter.Ratio,
	})
}

// hsl returns lightness and saturation of an 8-bit color
func hsl(r, g, b uint8) (lightness, saturation float64) {
	rf, gf, bf := float64(r)/255, float64(g)/255, float64(b)/255
	hi := max(rf, gf, bf)
	lo := min(rf, gf, bf)

	lightness = (hi + lo) / 2
	if hi == lo {
		return lightness, 0
	}
	if lightness > 0.5 {
		return lightness, (hi - lo) / (2 - hi - lo)
	}
	return lightness, (hi - lo) / (hi + lo)
}

// extractDominantColor picks a vibrant, readable accent color from img as #rrggbb
func extractDominantColor(img image.Image) (string, error) {
	if img == nil {
		return "", fmt.Errorf("nil image")
	}

	// Sample every 5th pixel in both directions
	const sampleRate = 5
	bounds := img.Bounds()
	counts := make(map[uint32]int)
	for y := bounds.Min.Y; y < bounds.Max.Y; y += sampleRate {
		for x := bounds.Min.X; x < bounds.Max.X; x += sampleRate {
			r, g, b, a := img.At(x, y).RGBA()
			if a < 32768 {
				continue
			}
			counts[(r>>8)<<16|(g>>8)<<8|b>>8]++
		}
	}

	type candidate struct {
		rgb   uint32
		score float64
	}
	var candidates []candidate
	for rgb, count := range counts {
		lightness, saturation := hsl(uint8(rgb>>16), uint8(rgb>>8), uint8(rgb))

		// Too dark, near-white or washed out colors are unreadable on a dark terminal
		if lightness < 0.3 || lightness > 0.85 || saturation < 0.25 {
			continue
		}

		lightnessScore := lightness
		if lightness > 0.7 {
			lightnessScore = 0.7 - (lightness - 0.7)
		}
		score := saturation*2.5 + lightnessScore*1.5 + float64(count)/1000
		candidates = append(candidates, candidate{rgb: rgb, score: score})
	}

	if len(candidates) == 0 {
		colors, err := prominentcolor.Kmeans(img)
		if err != nil || len(colors) == 0 {
			return "", fmt.Errorf("no suitable colors found")
		}
		c := colors[0].Color
		return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B), nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].rgb < candidates[j].rgb
	})
	best := candidates[0].rgb
	return fmt.Sprintf("#%02x%02x%02x", uint8(best>>16), uint8(best>>8), uint8(best)), nil
}

// Check if terminal supports Kitty graphics protocol
func supportsKittyGraphics() bool {
	term := os.Getenv("TERM")
	if strings.Contains(term, "kitty") || strings.Contains(term, "konsole") {
		return true
	}
	switch os.Getenv("TERM_PROGRAM") {
	case "ghostty", "WezTerm":
		return true
	}
	return false
}

// encodeArtworkForKitty renders img as a Kitty graphics escape sequence sized in terminal columns
func encodeArtworkForKitty(img image.Image) (string, error) {
	if img == nil {
		return "", fmt.Errorf("nil image")
	}
	cfg := config.Get()

	resized := resize.Resize(uint(cfg.Artwork.WidthPixels), 0, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := png.Encode(&buf, resized); err != nil {
		return "", fmt.Errorf("failed to encode PNG: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(buf.Bytes())

	// Kitty accepts at most 4096 bytes of payload per escape
	const chunkSize = 4096
	var out strings.Builder
	fmt.Fprintf(&out, "\033_Ga=d,d=I,i=%d\033\\", kittyImageID)

	for i := 0; i < len(encoded); i += chunkSize {
		end := min(i+chunkSize, len(encoded))
		more := 0
		if end < len(encoded) {
			more = 1
		}
		if i == 0 {
			fmt.Fprintf(&out, "\033_Ga=T,f=100,t=d,i=%d,c=%d,C=1,m=%d;%s\033\\",
				kittyImageID, cfg.Artwork.WidthColumns, more, encoded[i:end])
		} else {
			fmt.Fprintf(&out, "\033_Gm=%d;%s\033\\", more, encoded[i:end])
		}
	}
	return out.String(), nil
}

// kittyDeleteAll removes every image placed by the player
const kittyDeleteAll = "\033_Ga=d,d=A\033\\"

// processArtwork decodes the cover once, squares it, and returns the optional
// accent color along with the Kitty encoding
func processArtwork(artworkData []byte, extractColor bool) (color string, encoded string, err error) {
	img, err := decodeArtworkData(artworkData)
	if err != nil {
		return "", "", err
	}

	if squared, err := cropSquare(img); err == nil {
		img = squared
	}

	if extractColor {
		if c, err := extractDominantColor(img); err == nil {
			color = c
		}
	}

	encoded, err = encodeArtworkForKitty(img)
	if err != nil {
		return color, "", err
	}
	return color, encoded, nil
}
