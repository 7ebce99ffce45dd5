// Package content loads the editable portfolio copy: hero, about, skills,
// timeline, certifications, projects and contact details.
package content

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultDocument []byte

var ErrNameRequired = errors.New("hero.name is required")

// Link is a labelled outbound link. Icon is a key of the view icon table.
type Link struct {
	Label string `yaml:"label"`
	URL   string `yaml:"url"`
	Icon  string `yaml:"icon,omitempty"`
}

type Hero struct {
	Greeting     string   `yaml:"greeting"`
	Name         string   `yaml:"name"`
	Roles        []string `yaml:"roles"`
	Tagline      string   `yaml:"tagline"`
	PrimaryCTA   Link     `yaml:"primary_cta"`
	SecondaryCTA Link     `yaml:"secondary_cta"`
}

type About struct {
	Heading string `yaml:"heading"`
	Bio     string `yaml:"bio"`
	Links   []Link `yaml:"links"`

	BioHTML template.HTML `yaml:"-"`
}

type SkillCategory struct {
	Title  string   `yaml:"title"`
	Icon   string   `yaml:"icon"`
	Skills []string `yaml:"skills"`
}

// TimelineKind separates jobs from education on the experience timeline.
type TimelineKind string

const (
	TimelineWork      TimelineKind = "work"
	TimelineEducation TimelineKind = "education"
)

type TimelineItem struct {
	Title        string       `yaml:"title"`
	Organization string       `yaml:"organization"`
	Location     string       `yaml:"location"`
	Period       string       `yaml:"period"`
	Kind         TimelineKind `yaml:"kind"`
	Description  string       `yaml:"description"`
	Skills       []string     `yaml:"skills"`
	URL          string       `yaml:"url"`
}

// CertificationKind separates certifications from achievements.
type CertificationKind string

const (
	KindCertification CertificationKind = "certification"
	KindAchievement   CertificationKind = "achievement"
)

type Certification struct {
	Title         string            `yaml:"title"`
	Issuer        string            `yaml:"issuer"`
	Date          string            `yaml:"date"`
	Icon          string            `yaml:"icon"`
	Kind          CertificationKind `yaml:"kind"`
	CredentialURL string            `yaml:"credential_url"`
}

type Project struct {
	Title        string   `yaml:"title"`
	Description  string   `yaml:"description"`
	Image        string   `yaml:"image"`
	Technologies []string `yaml:"technologies"`
	DemoURL      string   `yaml:"demo_url"`
	GitHubURL    string   `yaml:"github_url"`
	Featured     bool     `yaml:"featured"`

	DescriptionHTML template.HTML `yaml:"-"`
}

type Contact struct {
	Heading  string `yaml:"heading"`
	Intro    string `yaml:"intro"`
	Email    string `yaml:"email"`
	Phone    string `yaml:"phone"`
	Location string `yaml:"location"`
	Social   []Link `yaml:"social"`
}

type Footer struct {
	Owner string `yaml:"owner"`
	Links []Link `yaml:"links"`
}

// Site is the whole content document.
type Site struct {
	Title          string          `yaml:"title"`
	Description    string          `yaml:"description"`
	Hero           Hero            `yaml:"hero"`
	About          About           `yaml:"about"`
	Skills         []SkillCategory `yaml:"skills"`
	Timeline       []TimelineItem  `yaml:"timeline"`
	Certifications []Certification `yaml:"certifications"`
	Projects       []Project       `yaml:"projects"`
	Contact        Contact         `yaml:"contact"`
	Footer         Footer          `yaml:"footer"`
}

// FeaturedProjects returns projects flagged as featured, in document order.
func (s *Site) FeaturedProjects() []Project {
	return s.projects(true)
}

// OtherProjects returns the remaining projects.
func (s *Site) OtherProjects() []Project {
	return s.projects(false)
}

func (s *Site) projects(featured bool) []Project {
	out := make([]Project, 0, len(s.Projects))
	for _, p := range s.Projects {
		if p.Featured == featured {
			out = append(out, p)
		}
	}
	return out
}

// CertificationsOf filters certifications by kind.
func (s *Site) CertificationsOf(kind CertificationKind) []Certification {
	out := make([]Certification, 0, len(s.Certifications))
	for _, c := range s.Certifications {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// Parse decodes a YAML document, rejecting unknown keys, and renders its
// markdown fields.
func Parse(data []byte) (*Site, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var site Site
	if err := dec.Decode(&site); err != nil {
		return nil, fmt.Errorf("decode content: %w", err)
	}
	if err := site.normalize(); err != nil {
		return nil, err
	}
	if err := site.render(); err != nil {
		return nil, err
	}
	return &site, nil
}

// Default returns the document embedded in the binary.
func Default() (*Site, error) {
	return Parse(defaultDocument)
}

// Load reads path, or returns the embedded document when path is empty.
func Load(path string) (*Site, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read content %s: %w", path, err)
	}
	return Parse(data)
}

func (s *Site) normalize() error {
	s.Hero.Name = strings.TrimSpace(s.Hero.Name)
	if s.Hero.Name == "" {
		return ErrNameRequired
	}
	if s.Title == "" {
		s.Title = s.Hero.Name
	}
	if s.Footer.Owner == "" {
		s.Footer.Owner = s.Hero.Name
	}

	roles := s.Hero.Roles[:0]
	for _, role := range s.Hero.Roles {
		if role = strings.TrimSpace(role); role != "" {
			roles = append(roles, role)
		}
	}
	s.Hero.Roles = roles

	for i, item := range s.Timeline {
		switch item.Kind {
		case "":
			s.Timeline[i].Kind = TimelineWork
		case TimelineWork, TimelineEducation:
		default:
			return fmt.Errorf("timeline[%d]: unknown kind %q", i, item.Kind)
		}
	}
	for i, cert := range s.Certifications {
		switch cert.Kind {
		case "":
			s.Certifications[i].Kind = KindCertification
		case KindCertification, KindAchievement:
		default:
			return fmt.Errorf("certifications[%d]: unknown kind %q", i, cert.Kind)
		}
		if cert.Icon == "" {
			s.Certifications[i].Icon = "award"
		}
	}
	return nil
}

func (s *Site) render() error {
	bio, err := RenderMarkdown(s.About.Bio)
	if err != nil {
		return fmt.Errorf("render about.bio: %w", err)
	}
	s.About.BioHTML = bio

	for i := range s.Projects {
		html, err := RenderMarkdown(s.Projects[i].Description)
		if err != nil {
			return fmt.Errorf("render projects[%d].description: %w", i, err)
		}
		s.Projects[i].DescriptionHTML = html
	}
	return nil
}
