package table

import (
	"fmt"

	"github.com/Gobusters/ectoerror/httperror"

	"github.com/Ramsey-B/fern/pkg/httpclient"
	"github.com/Ramsey-B/fern/pkg/models"
)

func (c *Client) results(resp *httpclient.Response) ([]models.Record, error) {
	objects, err := c.evaluator.Objects("result", resp.BodyJSON)
	if err != nil {
		return nil, err
	}

	records := make([]models.Record, 0, len(objects))
	for i, obj := range objects {
		record, err := models.RecordFrom(obj)
		if err != nil {
			return nil, fmt.Errorf("result[%d]: %w", i, err)
		}
		records = append(records, record)
	}
	return records, nil
}

func (c *Client) result(resp *httpclient.Response) (models.Record, error) {
	obj, err := c.evaluator.Object("result", resp.BodyJSON)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, fmt.Errorf("response has no result")
	}
	return models.RecordFrom(obj)
}

// unexpectedStatus converts a backend failure into an HTTP error carrying the backend's
// status and message
func (c *Client) unexpectedStatus(resp *httpclient.Response, operation, table string) error {
	message := c.evaluator.FirstString(resp.BodyJSON, "error.message", "error.detail")
	if message == "" {
		if text, ok := resp.BodyJSON.(string); ok {
			message = text
		}
	}

	msg := fmt.Sprintf("%s %s failed with status %d: %s", operation, table, resp.StatusCode, message)
	return httperror.NewHTTPError(resp.StatusCode, msg).
		AddMetaValue("table", table).
		AddMetaValue("backend_status", resp.StatusCode)
}
