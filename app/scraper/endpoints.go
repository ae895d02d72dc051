package scraper

import (
	"net/url"
	"strconv"
)

const (
	searchEndpoint = "https://www.linkedin.com/jobs-guest/jobs/api/seeMoreJobPostings/search"
	detailEndpoint = "https://www.linkedin.com/jobs-guest/jobs/api/jobPosting/"
)

// SearchURL builds the guest search endpoint URL for one profile's
// criteria.
func SearchURL(keywords, location string, distance int) string {
	params := url.Values{}
	params.Set("keywords", keywords)
	if location != "" {
		params.Set("location", location)
	}
	if distance > 0 {
		params.Set("distance", strconv.Itoa(distance))
	}
	params.Set("start", "0")

	return searchEndpoint + "?" + params.Encode()
}

// DetailURL builds the guest detail endpoint URL for one external record ID.
func DetailURL(externalID string) string {
	return detailEndpoint + externalID
}
