package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/storyweave/gamemaster/internal/handlers"
)

func listStories(client *http.Client, baseURL string) ([]string, error) {
	resp, err := client.Get(baseURL + "/v1/stories")
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiErrorFromBody(resp.StatusCode, body)
	}

	var storiesResp handlers.StoriesResponse
	if err := json.Unmarshal(body, &storiesResp); err != nil {
		return nil, fmt.Errorf("failed to parse stories response: %w", err)
	}
	return storiesResp.Stories, nil
}

func createSession(client *http.Client, baseURL string, storyName string) (*handlers.SessionResponse, error) {
	reqBody, err := json.Marshal(handlers.CreateSessionRequest{Story: storyName})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := client.Post(baseURL+"/v1/sessions", "application/json", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusCreated {
		return nil, apiErrorFromBody(resp.StatusCode, body)
	}

	var sessionResp handlers.SessionResponse
	if err := json.Unmarshal(body, &sessionResp); err != nil {
		return nil, fmt.Errorf("failed to parse session response: %w", err)
	}
	return &sessionResp, nil
}

func getSession(client *http.Client, baseURL string, id uuid.UUID) (*handlers.SessionResponse, error) {
	resp, err := client.Get(fmt.Sprintf("%s/v1/sessions/%s", baseURL, id))
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiErrorFromBody(resp.StatusCode, body)
	}

	var sessionResp handlers.SessionResponse
	if err := json.Unmarshal(body, &sessionResp); err != nil {
		return nil, fmt.Errorf("failed to parse session response: %w", err)
	}
	return &sessionResp, nil
}

func sendCommand(client *http.Client, baseURL string, id uuid.UUID, input string) (*handlers.CommandResponse, error) {
	reqBody, err := json.Marshal(handlers.CommandRequest{Input: input})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := client.Post(
		fmt.Sprintf("%s/v1/sessions/%s/commands", baseURL, id),
		"application/json",
		bytes.NewBuffer(reqBody),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiErrorFromBody(resp.StatusCode, body)
	}

	var cmdResp handlers.CommandResponse
	if err := json.Unmarshal(body, &cmdResp); err != nil {
		return nil, fmt.Errorf("failed to parse command response: %w", err)
	}
	return &cmdResp, nil
}

func apiErrorFromBody(status int, body []byte) error {
	var errorResp handlers.ErrorResponse
	if err := json.Unmarshal(body, &errorResp); err != nil || errorResp.Error == "" {
		return fmt.Errorf("API returned status %d: %s", status, string(body))
	}
	return fmt.Errorf("%s", errorResp.Error)
}
