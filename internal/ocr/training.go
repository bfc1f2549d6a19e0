package ocr

import (
	"encoding/json"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"unicode"

	"github.com/jeeftor/rowpilot/internal/logging"
)

// DefaultTrainingDataFilename is looked up in the home directory
const DefaultTrainingDataFilename = ".rowpilot_training_data.json"

// TrainingData maps cell bitmaps (Bitmap.Hex) to the character they show
type TrainingData struct {
	BitmapMap map[string]string `json:"bitmapMap"`
}

// DefaultTrainingDataPath returns the training file in the user's home
// directory, or in the working directory when home is unknown.
func DefaultTrainingDataPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultTrainingDataFilename
	}
	return filepath.Join(home, DefaultTrainingDataFilename)
}

// LoadTrainingData reads a training file
func LoadTrainingData(path string) (*TrainingData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read training data: %w", err)
	}
	var td TrainingData
	if err := json.Unmarshal(data, &td); err != nil {
		return nil, fmt.Errorf("failed to parse training data %s: %w", path, err)
	}
	if td.BitmapMap == nil {
		td.BitmapMap = map[string]string{}
	}
	logging.Debug("Training data loaded", "path", path, "characters", len(td.BitmapMap))
	return &td, nil
}

// Save writes the training data as indented JSON with sorted keys
func (td *TrainingData) Save(path string) error {
	data, err := json.MarshalIndent(td, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write training data: %w", err)
	}
	return nil
}

// Merge copies entries from other, overwriting existing bitmaps
func (td *TrainingData) Merge(other *TrainingData) {
	if td.BitmapMap == nil {
		td.BitmapMap = map[string]string{}
	}
	for k, v := range other.BitmapMap {
		td.BitmapMap[k] = v
	}
}

// Train maps the non-empty cells of img, in reading order, to the
// non-space characters of known.
func Train(img image.Image, g Grid, known string) (*TrainingData, error) {
	cells, _, _, err := Cells(img, g)
	if err != nil {
		return nil, err
	}
	var chars []rune
	for _, r := range known {
		if !unicode.IsSpace(r) {
			chars = append(chars, r)
		}
	}

	td := &TrainingData{BitmapMap: map[string]string{}}
	next := 0
	for i, cell := range cells {
		if next >= len(chars) {
			break
		}
		if cell.Empty() {
			continue
		}
		td.BitmapMap[cell.Hex()] = string(chars[next])
		logging.Debug("Mapped character to bitmap", "char", string(chars[next]), "cell", i)
		next++
	}
	if next == 0 {
		return nil, fmt.Errorf("no characters were mapped to bitmaps")
	}
	if next < len(chars) {
		logging.Warn("Fewer glyphs than known characters", "mapped", next, "known", len(chars))
	}
	return td, nil
}
