package webhooks

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"

	log "github.com/sirupsen/logrus"
)

// Drop posts the payload to the collaborator endpoint as signed JSON and
// returns the response status code. Transport failures return a zero
// status; classification of non-2xx responses is the caller's concern.
func Drop(ctx context.Context, endpoint, secret string, payload interface{}) (int, error) {
	if endpoint == "" || !IsUrl(endpoint) {
		return 0, fmt.Errorf("invalid url")
	}
	if payload == nil {
		return 0, fmt.Errorf("no payload to drop")
	}

	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return 0, err
	}

	request.Header.Set("Content-Type", "application/json; charset=utf-8")
	if secret != "" {
		h := sha256.New()
		h.Write([]byte(secret))
		request.Header.Add("crmhub-secret-256", base64.StdEncoding.EncodeToString(h.Sum(nil)))
	}

	client := &http.Client{}
	resp, err := client.Do(request)
	if err != nil {
		log.WithError(err).Error("failed to make request for webhook")
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		bodyBytes, _ := ioutil.ReadAll(resp.Body)
		log.WithFields(log.Fields{"url": endpoint, "status": resp.StatusCode,
			"body": string(bodyBytes)}).Error("webhook rejected")
	}
	return resp.StatusCode, nil
}

func IsUrl(str string) bool {
	u, err := url.Parse(str)
	return err == nil && u.Scheme != "" && u.Host != ""
}
