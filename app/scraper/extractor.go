package scraper

import (
	"bytes"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/lysyi3m/jobradar/app/job"
)

// Extractor turns raw upstream responses into structured records. Malformed
// input must produce an *ExtractError, never a panic; the irregularity of
// the upstream format stays behind this boundary.
type Extractor interface {
	ExtractSearch(data []byte) ([]job.Summary, error)
	ExtractDetail(data []byte, externalID string) (*job.Record, error)
	ExtractCompany(data []byte, companyName string) (*job.Company, error)
}

// GuestExtractor parses the upstream's guest HTML fragments with CSS
// selectors.
type GuestExtractor struct{}

var _ Extractor = (*GuestExtractor)(nil)

func NewGuestExtractor() *GuestExtractor {
	return &GuestExtractor{}
}

const entityURNPrefix = "urn:li:jobPosting:"

// ExtractSearch parses a search results fragment into summaries. Cards
// without a resolvable external ID are skipped rather than failing the page.
func (e *GuestExtractor) ExtractSearch(data []byte) ([]job.Summary, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, &ExtractError{Reason: "failed to parse search HTML", Err: err}
	}

	cards := doc.Find("li.base-card, div.base-card")
	if cards.Length() == 0 {
		return nil, &ExtractError{Reason: "no result cards in response"}
	}

	var summaries []job.Summary
	cards.Each(func(_ int, card *goquery.Selection) {
		urn, ok := card.Attr("data-entity-urn")
		if !ok {
			urn, _ = card.Find("[data-entity-urn]").First().Attr("data-entity-urn")
		}
		if !strings.Contains(urn, entityURNPrefix) {
			return
		}
		id := urn[strings.LastIndex(urn, ":")+1:]
		if id == "" {
			return
		}

		summary := job.Summary{
			ID:       id,
			Title:    text(card, "h3.base-search-card__title"),
			Company:  text(card, "h4.base-search-card__subtitle a"),
			Location: text(card, "span.job-search-card__location"),
			URL:      attr(card, "a.base-card__full-link", "href"),
		}
		summary.CompanyURL = attr(card, "h4.base-search-card__subtitle a", "href")

		if iso := attr(card, "time.job-search-card__listdate", "datetime"); iso != "" {
			if posted, err := time.Parse("2006-01-02", iso); err == nil {
				summary.PostedAt = &posted
			}
		}

		summaries = append(summaries, summary)
	})

	return summaries, nil
}

// ExtractDetail parses a job detail fragment into a full record, including
// the derived fields computed from the description text.
func (e *GuestExtractor) ExtractDetail(data []byte, externalID string) (*job.Record, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, &ExtractError{Reason: "failed to parse detail HTML", Err: err}
	}

	title := text(doc.Selection, "h2.top-card-layout__title")
	company := text(doc.Selection, "a.topcard__org-name-link")
	if title == "" || company == "" {
		return nil, &ExtractError{Reason: "detail page missing title or company"}
	}

	record := &job.Record{
		ID:                externalID,
		Title:             title,
		Company:           company,
		NormalizedCompany: job.NormalizeCompany(company),
		CompanyURL:        attr(doc.Selection, "a.topcard__org-name-link", "href"),
		Location:          text(doc.Selection, "span.topcard__flavor--bullet"),
		Applicants:        text(doc.Selection, "figcaption.num-applicants__caption"),
	}

	if iso := attr(doc.Selection, "span.posted-time-ago__text time", "datetime"); iso != "" {
		if posted, err := time.Parse("2006-01-02", iso); err == nil {
			record.PostedAt = &posted
		}
	}

	description := doc.Find("div.show-more-less-html__markup, div.description__text").First()
	descriptionText := strings.TrimSpace(description.Text())
	record.Description = descriptionText

	salaryText := text(doc.Selection, "div.salary.compensation__salary")
	record.SalaryMin, record.SalaryMax, record.SalaryCurrency = ParseSalary(salaryText)

	remote := DetectRemote(descriptionText)
	visa := DetectVisaSponsorship(descriptionText)
	record.RemoteEligible = &remote
	record.VisaSponsorship = &visa
	record.Skills = ExtractSkills(descriptionText)

	return record, nil
}

// ExtractCompany parses a company about page into enrichment metadata.
func (e *GuestExtractor) ExtractCompany(data []byte, companyName string) (*job.Company, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, &ExtractError{Reason: "failed to parse company HTML", Err: err}
	}

	company := &job.Company{
		Name:           companyName,
		NormalizedName: job.NormalizeCompany(companyName),
		Description:    text(doc.Selection, "p.about-us__description, section.core-section-container p"),
	}

	doc.Find("div.core-section-container__content dl > div, dl.about-us div").Each(func(_ int, item *goquery.Selection) {
		label := strings.ToLower(strings.TrimSpace(item.Find("dt").Text()))
		value := strings.TrimSpace(item.Find("dd").First().Text())
		if value == "" {
			return
		}
		switch {
		case strings.Contains(label, "company size"):
			company.Size = value
		case strings.Contains(label, "industry"):
			company.Industry = value
		case strings.Contains(label, "website"):
			company.Website = value
		case strings.Contains(label, "headquarters"):
			company.Headquarters = value
		}
	})

	if company.Description == "" && company.Size == "" && company.Industry == "" {
		return nil, &ExtractError{Reason: "company page missing about section"}
	}

	return company, nil
}

var salaryNumberPattern = regexp.MustCompile(`[\$£€¥]?\s*(\d{1,3}(?:,\d{3})*(?:\.\d+)?)\s*[Kk]?`)

var currencySymbols = []struct {
	symbol string
	code   string
}{
	{"$", "USD"},
	{"£", "GBP"},
	{"€", "EUR"},
	{"¥", "JPY"},
}

// ParseSalary turns free-text salary strings like "$120K - $180K" or
// "€60,000/yr" into a structured min/max/currency triple. Unparseable input
// yields nils: salary stays "not yet known".
func ParseSalary(salaryText string) (*float64, *float64, string) {
	salaryText = strings.TrimSpace(salaryText)
	if salaryText == "" || salaryText == "N/A" {
		return nil, nil, ""
	}

	currency := "USD"
	for _, c := range currencySymbols {
		if strings.Contains(salaryText, c.symbol) {
			currency = c.code
			break
		}
	}

	matches := salaryNumberPattern.FindAllStringSubmatch(salaryText, -1)
	if len(matches) == 0 {
		return nil, nil, ""
	}

	hasK := strings.Contains(strings.ToLower(salaryText), "k")
	var nums []float64
	for _, m := range matches {
		n, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil {
			continue
		}
		// "120K" style amounts are quoted in thousands.
		if hasK && n < 1000 {
			n *= 1000
		}
		nums = append(nums, n)
	}
	if len(nums) == 0 {
		return nil, nil, ""
	}

	lo, hi := nums[0], nums[0]
	if len(nums) >= 2 {
		lo = min(nums[0], nums[1])
		hi = max(nums[0], nums[1])
	}

	return &lo, &hi, currency
}

var remoteKeywords = []string{
	"remote", "work from home", "wfh", "distributed", "anywhere",
	"fully remote", "remote-first", "remote work", "work remotely",
}

var visaKeywords = []string{
	"visa sponsorship", "h1b", "h-1b", "work authorization",
	"sponsorship available", "sponsor visa", "visa support",
	"eligible for visa", "can sponsor",
}

// DetectRemote reports whether the description mentions remote work.
func DetectRemote(description string) bool {
	return containsAny(description, remoteKeywords)
}

// DetectVisaSponsorship reports whether the description mentions visa
// sponsorship.
func DetectVisaSponsorship(description string) bool {
	return containsAny(description, visaKeywords)
}

func containsAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

var skillPatterns = []struct {
	name    string
	pattern *regexp.Regexp
}{
	{"Python", regexp.MustCompile(`(?i)\bPython\b`)},
	{"Java", regexp.MustCompile(`(?i)\bJava\b`)},
	{"C++", regexp.MustCompile(`(?i)\bC\+\+`)},
	{"Go", regexp.MustCompile(`\bGo\b`)},
	{"Rust", regexp.MustCompile(`(?i)\bRust\b`)},
	{"JavaScript", regexp.MustCompile(`(?i)\bJavaScript\b`)},
	{"TypeScript", regexp.MustCompile(`(?i)\bTypeScript\b`)},
	{"Scala", regexp.MustCompile(`(?i)\bScala\b`)},
	{"Kotlin", regexp.MustCompile(`(?i)\bKotlin\b`)},
	{"TensorFlow", regexp.MustCompile(`(?i)\bTensorFlow\b`)},
	{"PyTorch", regexp.MustCompile(`(?i)\bPyTorch\b`)},
	{"Keras", regexp.MustCompile(`(?i)\bKeras\b`)},
	{"scikit-learn", regexp.MustCompile(`(?i)\bscikit-learn\b`)},
	{"LangChain", regexp.MustCompile(`(?i)\bLangChain\b`)},
	{"AWS", regexp.MustCompile(`\bAWS\b`)},
	{"GCP", regexp.MustCompile(`\bGCP\b`)},
	{"Azure", regexp.MustCompile(`(?i)\bAzure\b`)},
	{"PostgreSQL", regexp.MustCompile(`(?i)\bPostgreSQL\b`)},
	{"MySQL", regexp.MustCompile(`(?i)\bMySQL\b`)},
	{"MongoDB", regexp.MustCompile(`(?i)\bMongoDB\b`)},
	{"Redis", regexp.MustCompile(`(?i)\bRedis\b`)},
	{"SQLite", regexp.MustCompile(`(?i)\bSQLite\b`)},
	{"Docker", regexp.MustCompile(`(?i)\bDocker\b`)},
	{"Kubernetes", regexp.MustCompile(`(?i)\bKubernetes\b`)},
	{"Terraform", regexp.MustCompile(`(?i)\bTerraform\b`)},
	{"Kafka", regexp.MustCompile(`(?i)\bKafka\b`)},
	{"Spark", regexp.MustCompile(`(?i)\bSpark\b`)},
	{"Airflow", regexp.MustCompile(`(?i)\bAirflow\b`)},
}

// ExtractSkills scans the description for a fixed set of well-known
// technologies. Best-effort; returns a sorted, deduplicated list of
// canonical names.
func ExtractSkills(description string) []string {
	if description == "" {
		return nil
	}

	var skills []string
	for _, skill := range skillPatterns {
		if skill.pattern.MatchString(description) {
			skills = append(skills, skill.name)
		}
	}
	sort.Strings(skills)
	return skills
}

func text(s *goquery.Selection, selector string) string {
	return strings.TrimSpace(s.Find(selector).First().Text())
}

func attr(s *goquery.Selection, selector, name string) string {
	value, _ := s.Find(selector).First().Attr(name)
	return strings.TrimSpace(value)
}
