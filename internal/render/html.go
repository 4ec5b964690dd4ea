// Package render turns a JSON Resume into a PDF through headless Chrome.
package render

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"

	"github.com/amishk599/jobreach/internal/resume"
)

//go:embed theme.html
var themeRaw string

var theme = template.Must(template.New("theme").Funcs(template.FuncMap{
	"join": strings.Join,
	"dates": func(start, end, present string) string {
		switch {
		case start == "" && end == "":
			return ""
		case end == "":
			return start + " – " + present
		case start == "":
			return end
		default:
			return start + " – " + end
		}
	},
}).Parse(themeRaw))

type document struct {
	Basics struct {
		Name     string `json:"name"`
		Label    string `json:"label"`
		Email    string `json:"email"`
		Phone    string `json:"phone"`
		URL      string `json:"url"`
		Summary  string `json:"summary"`
		Location struct {
			City   string `json:"city"`
			Region string `json:"region"`
		} `json:"location"`
		Profiles []struct {
			Network  string `json:"network"`
			Username string `json:"username"`
			URL      string `json:"url"`
		} `json:"profiles"`
	} `json:"basics"`
	Work []struct {
		Name       string   `json:"name"`
		Position   string   `json:"position"`
		StartDate  string   `json:"startDate"`
		EndDate    string   `json:"endDate"`
		Summary    string   `json:"summary"`
		Highlights []string `json:"highlights"`
	} `json:"work"`
	Projects []struct {
		Name        string   `json:"name"`
		Description string   `json:"description"`
		Highlights  []string `json:"highlights"`
		Keywords    []string `json:"keywords"`
	} `json:"projects"`
	Education []struct {
		Institution string `json:"institution"`
		Area        string `json:"area"`
		StudyType   string `json:"studyType"`
		StartDate   string `json:"startDate"`
		EndDate     string `json:"endDate"`
	} `json:"education"`
	Skills []struct {
		Name     string   `json:"name"`
		Keywords []string `json:"keywords"`
	} `json:"skills"`
	Languages []struct {
		Language string `json:"language"`
		Fluency  string `json:"fluency"`
	} `json:"languages"`
	Meta struct {
		Language string `json:"language"`
	} `json:"meta"`

	Lang     string   `json:"-"`
	Headings headings `json:"-"`
}

type headings struct {
	Summary, Work, Projects, Skills, Education, Languages, Present string
}

var headingsByLang = map[string]headings{
	"en": {"Profile", "Experience", "Projects", "Skills", "Education", "Languages", "Present"},
	"es": {"Perfil", "Experiencia", "Proyectos", "Habilidades", "Educación", "Idiomas", "Actualidad"},
}

// HTML renders r with the built-in theme. meta.language selects the section
// headings ("es" or "en", default "es").
func HTML(r resume.Resume) ([]byte, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode resume: %w", err)
	}
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("resume does not fit the theme: %w", err)
	}

	doc.Lang = strings.ToLower(doc.Meta.Language)
	h, ok := headingsByLang[doc.Lang]
	if !ok {
		doc.Lang = "es"
		h = headingsByLang["es"]
	}
	doc.Headings = h

	var buf bytes.Buffer
	if err := theme.Execute(&buf, doc); err != nil {
		return nil, fmt.Errorf("render theme: %w", err)
	}
	return buf.Bytes(), nil
}
