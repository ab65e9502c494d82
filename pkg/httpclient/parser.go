package httpclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime"
)

// decodeBody fills BodyJSON. Numbers stay json.Number so integer columns keep their digits.
func decodeBody(resp *Response) error {
	if len(resp.Body) == 0 {
		return nil
	}

	mediaType, _, _ := mime.ParseMediaType(resp.ContentType)
	if mediaType != "application/json" && mediaType != "text/json" {
		resp.BodyJSON = string(resp.Body)
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(resp.Body))
	dec.UseNumber()
	if err := dec.Decode(&resp.BodyJSON); err != nil {
		return fmt.Errorf("malformed JSON body: %w", err)
	}
	return nil
}
