package directory

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"propbook/pkg/client"
	"propbook/pkg/model"
	"time"
)

// HTTPDirectory reads properties and users from JSON services at
// GET {base}/properties/{id} and GET {base}/users/{id}.
type HTTPDirectory struct {
	properties *client.HttpClient
	users      *client.HttpClient
}

func NewHTTPDirectory(propertyURL, userURL string, timeout time.Duration) *HTTPDirectory {
	return &HTTPDirectory{
		properties: client.NewHttpClient(propertyURL, timeout),
		users:      client.NewHttpClient(userURL, timeout),
	}
}

func (d *HTTPDirectory) GetProperty(ctx context.Context, id string) (*model.Property, error) {
	var property model.Property
	if err := fetch(ctx, d.properties, "/properties/"+url.PathEscape(id), &property); err != nil {
		return nil, err
	}
	return &property, nil
}

func (d *HTTPDirectory) GetUser(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	if err := fetch(ctx, d.users, "/users/"+url.PathEscape(id), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func fetch(ctx context.Context, c *client.HttpClient, path string, target any) error {
	resp, err := c.GET(ctx, path)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("directory returned %d: %s", resp.StatusCode, client.GetErrorMessage(resp))
	}
	if err := resp.DecodeJSON(target); err != nil {
		return fmt.Errorf("failed to decode directory response: %w", err)
	}
	return nil
}
