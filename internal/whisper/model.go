package whisper

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultModel is the English-only tiny model: fast enough for CPU subtitling.
const (
	DefaultModel    = "tiny.en"
	DefaultLanguage = "en"
)

// ggml conversions of the OpenAI checkpoints are published in one repo. The raw
// endpoint serves the git-lfs pointer, whose oid line carries the file's sha256.
const (
	modelRepo       = "https://huggingface.co/ggerganov/whisper.cpp"
	englishOnlyTag  = ".en"
	modelFilePrefix = "ggml-"
)

type Model struct {
	Name     string
	FileName string
	URL      string
	// SHA256 is pinned for the models we test against. Others fall back to
	// SHA256URL, the lfs pointer.
	SHA256    string
	SHA256URL string
}

// EnglishOnly reports whether the model only transcribes English.
func (m Model) EnglishOnly() bool {
	return strings.HasSuffix(m.Name, englishOnlyTag)
}

type ResolvedModel struct {
	Model
	Path          string
	NeedsDownload bool
	IsCustomPath  bool
}

// SupportsLanguage reports whether a transcription language fits the model.
// Custom model files are trusted.
func (r ResolvedModel) SupportsLanguage(language string) bool {
	if r.IsCustomPath || !r.EnglishOnly() {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(language)) {
	case "", "auto", "en":
		return true
	default:
		return false
	}
}

func hostedModel(name, sha256 string) Model {
	file := modelFilePrefix + name + ".bin"
	return Model{
		Name:      name,
		FileName:  file,
		URL:       modelRepo + "/resolve/main/" + file,
		SHA256:    sha256,
		SHA256URL: modelRepo + "/raw/main/" + file,
	}
}

var registry = indexModels(
	hostedModel("tiny.en", "921e4cf8686fdd993dcd081a5da5b6c365bfde1162e72b08d75ac75289920b1f"),
	hostedModel("tiny", "be07e048e1e599ad46341c8d2a135645097a538221678b7acdd1b1919c6e1b21"),
	hostedModel("base.en", ""),
	hostedModel("base", "60ed5bc3dd14eea856493d334349b405782ddcaf0028d4b5df4088345fba2efe"),
	hostedModel("small.en", ""),
	hostedModel("small", "1be3a9b2063867b937e64e2ec7483364a79917e157fa98c5d94b5c1fffea987b"),
	hostedModel("medium.en", ""),
	hostedModel("medium", "6c14d5adee5f86394037b4e4e8b59f1673b6cee10e3cf0b11bbdbee79c156208"),
	hostedModel("large-v3", "64d182b440b98d5203c4f9bd541544d84c605196c4f7b845dfa11fb23594d1e2"),
)

func indexModels(models ...Model) map[string]Model {
	index := make(map[string]Model, len(models))
	for _, m := range models {
		index[m.Name] = m
	}
	return index
}

func ModelNames() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func LookupModel(name string) (Model, bool) {
	model, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	return model, ok
}

// ResolveModel maps a model name or a path to a ggml file. Named models live
// in modelDir and may still need downloading.
func ResolveModel(modelRef, modelDir string) (ResolvedModel, error) {
	if strings.TrimSpace(modelRef) == "" {
		modelRef = DefaultModel
	}

	if model, ok := LookupModel(modelRef); ok {
		return resolveHosted(model, modelDir)
	}
	if looksLikePath(modelRef) {
		return resolveCustom(modelRef)
	}

	return ResolvedModel{}, fmt.Errorf("unknown model %q (known models: %s)", modelRef, strings.Join(ModelNames(), ", "))
}

func resolveHosted(model Model, modelDir string) (ResolvedModel, error) {
	if strings.TrimSpace(modelDir) == "" {
		return ResolvedModel{}, errors.New("model directory must not be empty for named model")
	}

	resolved := ResolvedModel{Model: model, Path: filepath.Join(modelDir, model.FileName)}
	switch _, err := os.Stat(resolved.Path); {
	case err == nil:
	case errors.Is(err, os.ErrNotExist):
		resolved.NeedsDownload = true
	default:
		return ResolvedModel{}, fmt.Errorf("stat model path: %w", err)
	}
	return resolved, nil
}

func resolveCustom(modelRef string) (ResolvedModel, error) {
	path := filepath.Clean(modelRef)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ResolvedModel{}, fmt.Errorf("custom model path does not exist: %s", path)
		}
		return ResolvedModel{}, fmt.Errorf("stat custom model path: %w", err)
	}

	return ResolvedModel{Path: path, IsCustomPath: true}, nil
}

func looksLikePath(input string) bool {
	return strings.ContainsRune(input, os.PathSeparator) || strings.HasSuffix(strings.ToLower(input), ".bin")
}
