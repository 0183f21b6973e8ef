// services/notion.go
package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"calbridge-backend/utils"
)

const notionVersion = "2022-06-28"

// NotionService mirrors booking dates into the Notion lead database: the
// page matching the attendee's email or phone gets its scheduled-date column
// updated. Failures here are logged by the caller and never block reminder
// scheduling; the two are independent side effects of the same event.
type NotionService struct {
	httpClient *http.Client
	baseURL    string
	token      string
	databaseID string
	attempts   int
}

func NewNotionService(token, databaseID string) *NotionService {
	return &NotionService{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    "https://api.notion.com",
		token:      token,
		databaseID: databaseID,
		attempts:   3,
	}
}

// SyncBookingDate finds the lead's page and writes the meeting time in the
// booking's timezone. Bounded attempts; returns the last error when all
// fail. A missing page or an unconfigured integration is not an error.
func (n *NotionService) SyncBookingDate(ev BookingEvent) error {
	if n.token == "" || n.databaseID == "" {
		return nil
	}
	if ev.AttendeeEmail == "" && ev.AttendeePhone == "" {
		return nil
	}

	var lastErr error
	for i := 0; i < n.attempts; i++ {
		err := n.syncOnce(ev)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("after %d attempts: %w", n.attempts, lastErr)
}

func (n *NotionService) syncOnce(ev BookingEvent) error {
	pageID, err := n.findPage(ev.AttendeeEmail, ev.AttendeePhone)
	if err != nil {
		return err
	}
	if pageID == "" {
		return nil
	}
	return n.updateScheduledDate(pageID, utils.FormatInZone(ev.MeetingTime, ev.Timezone))
}

func (n *NotionService) findPage(email, phone string) (string, error) {
	var filters []map[string]interface{}
	if email != "" {
		filters = append(filters, map[string]interface{}{
			"property": "Email",
			"email":    map[string]interface{}{"equals": email},
		})
	}
	if phone != "" {
		filters = append(filters, map[string]interface{}{
			"property":     "Telefone",
			"phone_number": map[string]interface{}{"equals": phone},
		})
	}

	var filter interface{} = filters[0]
	if len(filters) == 2 {
		filter = map[string]interface{}{"or": filters}
	}

	var result struct {
		Results []struct {
			ID string `json:"id"`
		} `json:"results"`
	}
	err := n.do(http.MethodPost,
		fmt.Sprintf("%s/v1/databases/%s/query", n.baseURL, n.databaseID),
		map[string]interface{}{"filter": filter},
		&result)
	if err != nil {
		return "", err
	}
	if len(result.Results) == 0 {
		return "", nil
	}
	return result.Results[0].ID, nil
}

func (n *NotionService) updateScheduledDate(pageID, when string) error {
	payload := map[string]interface{}{
		"properties": map[string]interface{}{
			"Data Agendada pelo Lead": map[string]interface{}{
				"rich_text": []map[string]interface{}{
					{"text": map[string]interface{}{"content": when}},
				},
			},
		},
	}
	return n.do(http.MethodPatch, fmt.Sprintf("%s/v1/pages/%s", n.baseURL, pageID), payload, nil)
}

func (n *NotionService) do(method, url string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+n.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Notion-Version", notionVersion)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("notion %s %s: %s: %s", method, url, resp.Status, snippet)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
