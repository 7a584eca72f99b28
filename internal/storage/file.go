package storage

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/IshaanNene/tubeharvest/internal/types"
)

// BaseName is the file name, without extension, every file export uses.
const BaseName = "youtube_data"

var csvHeader = []string{
	"title", "channel", "subscribers", "views", "likes",
	"description", "scraped_at", "url", "comment_index", "comment",
}

const commentsMarker = "\n\nComments:\n"

var errMalformed = errors.New("malformed export")

// encoding/csv folds \r\n to \n inside quoted fields, so carriage returns
// are written as the two characters \r and backslashes are doubled.
var (
	csvEscaper   = strings.NewReplacer(`\`, `\\`, "\r", `\r`)
	csvUnescaper = strings.NewReplacer(`\\`, `\`, `\r`, "\r")
)

func escapeRow(row []string) []string {
	out := make([]string, len(row))
	for i, f := range row {
		out[i] = csvEscaper.Replace(f)
	}
	return out
}

// --- JSON ---

// EncodeJSON writes h as {"video_info": {...}, "comments": [...]}.
func EncodeJSON(w io.Writer, h *types.Harvest) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(h)
}

// DecodeJSON reads a harvest written by EncodeJSON.
func DecodeJSON(r io.Reader) (*types.Harvest, error) {
	var h types.Harvest
	if err := json.NewDecoder(r).Decode(&h); err != nil {
		return nil, fmt.Errorf("decode JSON: %w", err)
	}
	return types.NewHarvest(h.Video, h.Comments), nil
}

// --- CSV ---

// EncodeCSV writes one row per comment. Video fields are only filled on the
// first row; a harvest without comments is a single row with an empty
// comment_index.
func EncodeCSV(w io.Writer, h *types.Harvest) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}

	v := h.Video
	video := []string{
		v.Title, v.Channel, v.SubscriberCountText, v.ViewCountText, v.LikeCount.String(),
		v.Description, v.ScrapedAt.Format(time.RFC3339Nano), v.URL,
	}
	blank := make([]string, len(video))

	if len(h.Comments) == 0 {
		if err := cw.Write(escapeRow(append(video, "", ""))); err != nil {
			return fmt.Errorf("write CSV row: %w", err)
		}
	}
	for i, c := range h.Comments {
		lead := blank
		if i == 0 {
			lead = video
		}
		row := append(append([]string{}, lead...), strconv.Itoa(i+1), c)
		if err := cw.Write(escapeRow(row)); err != nil {
			return fmt.Errorf("write CSV row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// DecodeCSV reads a harvest written by EncodeCSV.
func DecodeCSV(r io.Reader) (*types.Harvest, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(csvHeader)

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("decode CSV: %w", err)
	}
	for _, row := range rows[min(1, len(rows)):] {
		for i, f := range row {
			row[i] = csvUnescaper.Replace(f)
		}
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("decode CSV: %w: no data rows", errMalformed)
	}
	for i, name := range csvHeader {
		if rows[0][i] != name {
			return nil, fmt.Errorf("decode CSV: %w: column %d is %q, want %q", errMalformed, i, rows[0][i], name)
		}
	}

	first := rows[1]
	scrapedAt, err := time.Parse(time.RFC3339Nano, first[6])
	if err != nil {
		return nil, fmt.Errorf("decode CSV scraped_at: %w", err)
	}
	video := types.VideoRecord{
		Title:               first[0],
		Channel:             first[1],
		SubscriberCountText: first[2],
		ViewCountText:       first[3],
		LikeCount:           types.ParseCountString(first[4]),
		Description:         first[5],
		ScrapedAt:           scrapedAt,
		URL:                 first[7],
	}

	comments := make([]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if row[8] == "" {
			continue
		}
		if row[8] != strconv.Itoa(len(comments)+1) {
			return nil, fmt.Errorf("decode CSV: %w: comment_index %q out of sequence", errMalformed, row[8])
		}
		comments = append(comments, row[9])
	}
	return types.NewHarvest(video, comments), nil
}

// --- Text ---

// EncodeText writes the indented JSON record, a blank line, "Comments:" and
// then one numbered entry per comment. Continuation lines of a multi-line
// comment start with a tab.
func EncodeText(w io.Writer, h *types.Harvest) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(h.Video); err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	out := strings.TrimRight(buf.String(), "\n") + commentsMarker
	var sb strings.Builder
	sb.WriteString(out)
	for i, c := range h.Comments {
		lines := strings.Split(c, "\n")
		fmt.Fprintf(&sb, "%d. %s\n", i+1, lines[0])
		for _, l := range lines[1:] {
			sb.WriteString("\t" + l + "\n")
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// DecodeText reads a harvest written by EncodeText.
func DecodeText(r io.Reader) (*types.Harvest, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read text: %w", err)
	}
	body := string(raw)

	idx := strings.Index(body, commentsMarker)
	if idx < 0 {
		return nil, fmt.Errorf("decode text: %w: missing Comments section", errMalformed)
	}

	var video types.VideoRecord
	if err := json.Unmarshal([]byte(body[:idx]), &video); err != nil {
		return nil, fmt.Errorf("decode text record: %w", err)
	}

	rest := strings.TrimSuffix(body[idx+len(commentsMarker):], "\n")
	comments := []string{}
	if rest == "" {
		return types.NewHarvest(video, comments), nil
	}

	for _, line := range strings.Split(rest, "\n") {
		if strings.HasPrefix(line, "\t") {
			if len(comments) == 0 {
				return nil, fmt.Errorf("decode text: %w: continuation before first comment", errMalformed)
			}
			comments[len(comments)-1] += "\n" + line[1:]
			continue
		}
		prefix := strconv.Itoa(len(comments)+1) + "."
		if !strings.HasPrefix(line, prefix) {
			return nil, fmt.Errorf("decode text: %w: expected entry %q, got %q", errMalformed, prefix, line)
		}
		text := strings.TrimPrefix(line, prefix)
		comments = append(comments, strings.TrimPrefix(text, " "))
	}
	return types.NewHarvest(video, comments), nil
}

// --- File exporter ---

type encodeFunc func(io.Writer, *types.Harvest) error

var encoders = map[string]encodeFunc{
	"json": EncodeJSON,
	"csv":  EncodeCSV,
	"txt":  EncodeText,
}

// FileExporter writes each harvest to <dir>/youtube_data.<format>,
// replacing the previous file.
type FileExporter struct {
	format string
	path   string
	encode encodeFunc
	count  int
	logger *slog.Logger
}

// NewFileExporter creates a file exporter for json, csv or txt.
func NewFileExporter(format, outputDir string, logger *slog.Logger) (*FileExporter, error) {
	encode, ok := encoders[format]
	if !ok {
		return nil, fmt.Errorf("unsupported file format: %s", format)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	return &FileExporter{
		format: format,
		path:   filepath.Join(outputDir, BaseName+"."+format),
		encode: encode,
		logger: logger.With("component", format+"_exporter"),
	}, nil
}

func (e *FileExporter) Name() string { return e.format }

// Path returns the file the exporter writes.
func (e *FileExporter) Path() string { return e.path }

func (e *FileExporter) Export(ctx context.Context, h *types.Harvest) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := os.Create(e.path)
	if err != nil {
		return &types.StorageError{Backend: e.format, Err: fmt.Errorf("create output file: %w", err)}
	}
	if err := e.encode(f, h); err != nil {
		f.Close()
		return &types.StorageError{Backend: e.format, Err: err}
	}
	if err := f.Close(); err != nil {
		return &types.StorageError{Backend: e.format, Err: err}
	}

	e.count++
	e.logger.Info("export written", "path", e.path, "comments", len(h.Comments))
	return nil
}

func (e *FileExporter) Close() error {
	e.logger.Debug("file exporter closing", "path", e.path, "exports", e.count)
	return nil
}
