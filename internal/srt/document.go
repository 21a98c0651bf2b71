// Package srt renders transcription segments as SubRip subtitle documents.
package srt

import (
	"io"
	"path"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	// ContentType is the MIME type served for generated documents.
	ContentType = "application/x-subrip"
	// Extension is appended to the audio base name to name a document.
	Extension = ".srt"
)

// Segment is one transcribed span of audio. Offsets are seconds from the start
// of the recording.
type Segment struct {
	Start float64
	End   float64
	Text  string
}

// Assemble builds a SubRip document with one block per segment, numbered from 1
// in input order. Segments are neither sorted nor validated.
func Assemble(segments []Segment) string {
	var b strings.Builder
	_ = Write(&b, segments)
	return b.String()
}

// Write streams the document produced by Assemble to w.
func Write(w io.Writer, segments []Segment) error {
	for i, segment := range segments {
		block := strconv.Itoa(i+1) + "\n" +
			FormatTimestamp(segment.Start) + " --> " + FormatTimestamp(segment.End) + "\n" +
			segment.Text + "\n\n"
		if _, err := io.WriteString(w, block); err != nil {
			return err
		}
	}
	return nil
}

// FileName derives the subtitle file name for an uploaded audio name by
// replacing its extension with .srt. Directory components are dropped, using
// either slash style since browsers may send Windows paths.
func FileName(audioName string) string {
	base := path.Base(filepath.ToSlash(strings.ReplaceAll(strings.TrimSpace(audioName), `\`, "/")))
	if base == "." || base == "/" || base == "" {
		base = "subtitles"
	}

	stem := strings.TrimSuffix(base, path.Ext(base))
	if stem == "" {
		stem = base
	}
	return stem + Extension
}
