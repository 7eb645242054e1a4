// Package prompts renders the instruction text sent to the generation
// service. Templates live in embedded files so wording changes never touch
// Go code.
package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"strings"
	"sync"
	"text/template"

	"github.com/pkarpov/studytutor/internal/model"
)

//go:embed templates/*.txt
var templateFS embed.FS

var createFiles = map[model.ChallengeKind]string{
	model.KindMultipleChoice: "create_multiple_choice.txt",
	model.KindOpenResponse:   "create_open_response.txt",
	model.KindSummary:        "create_summary.txt",
	model.KindKeyPoints:      "create_key_points.txt",
	model.KindAnalogy:        "create_analogy.txt",
	model.KindQuestion:       "create_question.txt",
}

var (
	loadOnce        sync.Once
	loadErr         error
	createTemplates map[model.ChallengeKind]*template.Template
	gradeTemplate   *template.Template
	systemText      string
	systemVision    string
	systemGrade     string
)

// CreateData holds template data for create and free-form prompts.
type CreateData struct {
	QuestionCount int
	OptionCount   int
	Difficulty    string
	Prompt        string // free-form question text
	MaterialText  string // inline study text; empty when attached as a blob
}

// GradeData holds template data for open-response grading prompts.
type GradeData struct {
	Challenge string
	Answer    string
	Context   string
}

func load() error {
	loadOnce.Do(func() {
		createTemplates = make(map[model.ChallengeKind]*template.Template)
		for kind, name := range createFiles {
			tmpl, err := parseFile(name)
			if err != nil {
				loadErr = err
				return
			}
			createTemplates[kind] = tmpl
		}

		gradeTemplate, loadErr = parseFile("grade_open.txt")
		if loadErr != nil {
			return
		}

		systemText, loadErr = readFile("system_text.txt")
		if loadErr != nil {
			return
		}
		systemVision, loadErr = readFile("system_vision.txt")
		if loadErr != nil {
			return
		}
		systemGrade, loadErr = readFile("system_grade.txt")
	})
	return loadErr
}

func parseFile(name string) (*template.Template, error) {
	content, err := readFile(name)
	if err != nil {
		return nil, err
	}
	tmpl, err := template.New(name).Parse(content)
	if err != nil {
		return nil, fmt.Errorf("parse prompt template %s: %w", name, err)
	}
	return tmpl, nil
}

func readFile(name string) (string, error) {
	data, err := templateFS.ReadFile("templates/" + name)
	if err != nil {
		return "", fmt.Errorf("read prompt file %s: %w", name, err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

// System returns the system instruction for create and free-form tasks. The
// vision variant is used when the material is image-typed.
func System(vision bool) (string, error) {
	if err := load(); err != nil {
		return "", err
	}
	if vision {
		return systemVision, nil
	}
	return systemText, nil
}

// GradeSystem returns the system instruction for open-response grading.
func GradeSystem() (string, error) {
	if err := load(); err != nil {
		return "", err
	}
	return systemGrade, nil
}

// BuildCreate renders the create prompt for the given challenge kind.
func BuildCreate(kind model.ChallengeKind, data CreateData) (string, error) {
	if err := load(); err != nil {
		return "", err
	}
	tmpl, ok := createTemplates[kind]
	if !ok {
		return "", errors.New("unknown challenge kind: " + string(kind))
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// BuildGrade renders the open-response grading prompt.
func BuildGrade(data GradeData) (string, error) {
	if err := load(); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := gradeTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
