package postprocess

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"scrivener/internal/config"
	"scrivener/internal/fileutil"
	"scrivener/internal/logging"
	"scrivener/internal/textutil"
)

// Position identifies which edge line of a transcript a finding refers to.
type Position string

const (
	PositionFirst Position = "first"
	PositionLast  Position = "last"
)

// Finding is one edge line that resembles a configured filler phrase.
type Finding struct {
	Position   Position `json:"position"`
	Line       int      `json:"line"`
	Text       string   `json:"text"`
	Phrase     string   `json:"phrase"`
	Similarity float64  `json:"similarity"`
	Removed    bool     `json:"removed"`
}

// Result is the cleaned text and what was found in it.
type Result struct {
	Text     string
	Findings []Finding
}

// Flagged reports whether any edge line crossed the review threshold.
func (r Result) Flagged() bool {
	return len(r.Findings) > 0
}

// Changed reports whether any line was removed.
func (r Result) Changed() bool {
	for _, f := range r.Findings {
		if f.Removed {
			return true
		}
	}
	return false
}

// Cleaner detects conversational filler that models wrap transcripts in,
// such as "Here is the transcribed text from the image". Only the first and
// last non-blank lines are considered.
type Cleaner struct {
	phrases []string
	review  float64
	removal float64
}

// New builds a Cleaner from the postprocess settings.
func New(settings config.Postprocess) *Cleaner {
	phrases := make([]string, 0, len(settings.Phrases))
	for _, p := range settings.Phrases {
		if p = strings.TrimSpace(p); p != "" {
			phrases = append(phrases, p)
		}
	}
	return &Cleaner{
		phrases: phrases,
		review:  settings.ReviewThreshold,
		removal: settings.RemovalThreshold,
	}
}

// Clean scores the edge lines of text. Lines scoring above the review
// threshold are reported; above the removal threshold they are dropped.
func (c *Cleaner) Clean(text string) Result {
	lines := strings.Split(text, "\n")
	first, last := -1, -1
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if first < 0 {
			first = i
		}
		last = i
	}
	if first < 0 || len(c.phrases) == 0 {
		return Result{Text: text}
	}

	var findings []Finding
	remove := make(map[int]bool, 2)
	check := func(idx int, pos Position) {
		line := strings.TrimSpace(lines[idx])
		phrase, score := c.bestMatch(line)
		if score <= c.review {
			return
		}
		removed := score > c.removal
		findings = append(findings, Finding{
			Position:   pos,
			Line:       idx + 1,
			Text:       line,
			Phrase:     phrase,
			Similarity: score,
			Removed:    removed,
		})
		if removed {
			remove[idx] = true
		}
	}
	check(first, PositionFirst)
	if last != first {
		check(last, PositionLast)
	}
	if len(remove) == 0 {
		return Result{Text: text, Findings: findings}
	}

	kept := make([]string, 0, len(lines))
	for i, line := range lines {
		if !remove[i] {
			kept = append(kept, line)
		}
	}
	return Result{Text: strings.Join(kept, "\n"), Findings: findings}
}

func (c *Cleaner) bestMatch(line string) (string, float64) {
	var best string
	var score float64
	for _, phrase := range c.phrases {
		if s := textutil.LineSimilarity(line, phrase); s > score {
			best, score = phrase, s
		}
	}
	return best, score
}

// FileReport pairs a transcript file with its findings.
type FileReport struct {
	Path     string    `json:"path"`
	Findings []Finding `json:"findings"`
}

// CleanFile rewrites path in place when a line is removed.
func (c *Cleaner) CleanFile(path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("read transcript: %w", err)
	}
	result := c.Clean(string(data))
	if !result.Changed() {
		return result, nil
	}
	result.Text = textutil.NormalizeTranscript(result.Text)
	if err := fileutil.WriteAtomic(path, []byte(result.Text), 0o644); err != nil {
		return result, fmt.Errorf("write transcript: %w", err)
	}
	return result, nil
}

// CleanDir cleans every .txt file directly inside dir and returns reports
// for the flagged ones, sorted by path. A file that cannot be processed is
// logged and skipped.
func (c *Cleaner) CleanDir(ctx context.Context, dir string, logger *slog.Logger) ([]FileReport, error) {
	logger = logging.NewComponentLogger(logger, "postprocess")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read transcript directory: %w", err)
	}
	var reports []FileReport
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.EqualFold(filepath.Ext(name), ".txt") {
			continue
		}
		path := filepath.Join(dir, name)
		result, err := c.CleanFile(path)
		if err != nil {
			logging.WarnWithContext(logger, "transcript cleanup failed", "cleanup_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "file left unchanged"),
			)
			continue
		}
		if !result.Flagged() {
			continue
		}
		for _, f := range result.Findings {
			if f.Removed {
				logger.Info("removed filler line",
					logging.String("path", path),
					logging.String("position", string(f.Position)),
					logging.Float64("similarity", f.Similarity),
				)
			}
		}
		reports = append(reports, FileReport{Path: path, Findings: result.Findings})
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].Path < reports[j].Path })
	return reports, nil
}
