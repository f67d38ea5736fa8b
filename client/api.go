package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// ErrNoResponse reports that every candidate path failed at the
// transport level.
var ErrNoResponse = fmt.Errorf("no response from any endpoint")

// APIError is any non-2xx response the server returned.
type APIError struct {
	StatusCode int
	Message    string              `json:"message"`
	Errors     map[string][]string `json:"errors,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Avatar string `json:"avatar,omitempty"`
}

type Project struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
	Priority    string `json:"priority,omitempty"`
	OwnerID     string `json:"owner_id,omitempty"`
	Owner       *User  `json:"owner,omitempty"`
	Team        []User `json:"team,omitempty"`
	StartDate   string `json:"start_date,omitempty"`
	EndDate     string `json:"end_date,omitempty"`
}

type Task struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
	Priority    string `json:"priority,omitempty"`
	ProjectID   string `json:"project_id"`
	AssignedTo  string `json:"assigned_to,omitempty"`
	CreatedBy   string `json:"created_by,omitempty"`
	DueDate     string `json:"due_date,omitempty"`
}

// PageMeta mirrors the pagination envelope on index endpoints.
type PageMeta struct {
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	Total       int64 `json:"total"`
	LastPage    int   `json:"last_page"`
}

type page[T any] struct {
	Data []T      `json:"data"`
	Meta PageMeta `json:"meta"`
}

// decode settles a response into out, turning error statuses into
// *APIError. A nil response becomes ErrNoResponse.
func decode(resp *http.Response, out interface{}) error {
	if resp == nil {
		return ErrNoResponse
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(raw, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

// Auth

func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	resp, err := c.do(ctx, http.MethodPost, []string{"/login", "/api/login"}, map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}
	var user User
	if err := decode(resp, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) Register(ctx context.Context, name, email, password string) (*User, error) {
	resp, err := c.do(ctx, http.MethodPost, []string{"/register", "/api/register"}, map[string]string{
		"name":                  name,
		"email":                 email,
		"password":              password,
		"password_confirmation": password,
	})
	if err != nil {
		return nil, err
	}
	var user User
	if err := decode(resp, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) Logout(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodPost, []string{"/logout", "/api/logout"}, nil)
	if err != nil {
		return err
	}
	return decode(resp, nil)
}

func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	resp, err := c.do(ctx, http.MethodGet, []string{"/api/user", "/user"}, nil)
	if err != nil {
		return nil, err
	}
	var user User
	if err := decode(resp, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Projects

func (c *Client) ListProjects(ctx context.Context, query string) ([]Project, PageMeta, error) {
	path := "/api/projects"
	if query != "" {
		path += "?" + query
	}
	resp, err := c.do(ctx, http.MethodGet, []string{path}, nil)
	if err != nil {
		return nil, PageMeta{}, err
	}
	var result page[Project]
	if err := decode(resp, &result); err != nil {
		return nil, PageMeta{}, err
	}
	return result.Data, result.Meta, nil
}

func (c *Client) GetProject(ctx context.Context, id string) (*Project, error) {
	resp, err := c.do(ctx, http.MethodGet, []string{"/api/projects/" + id}, nil)
	if err != nil {
		return nil, err
	}
	var project Project
	if err := decode(resp, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

func (c *Client) CreateProject(ctx context.Context, project Project) (*Project, error) {
	project.Status = normalizeProjectStatus(project.Status)
	project.Priority = normalizePriority(project.Priority)
	resp, err := c.do(ctx, http.MethodPost, []string{"/api/projects"}, project)
	if err != nil {
		return nil, err
	}
	var created Project
	if err := decode(resp, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) UpdateProject(ctx context.Context, id string, changes map[string]interface{}) (*Project, error) {
	normalizeChangeSet(changes, "status", normalizeProjectStatus)
	normalizeChangeSet(changes, "priority", normalizePriority)
	resp, err := c.do(ctx, http.MethodPut, []string{"/api/projects/" + id}, changes)
	if err != nil {
		return nil, err
	}
	var updated Project
	if err := decode(resp, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (c *Client) DeleteProject(ctx context.Context, id string) error {
	resp, err := c.do(ctx, http.MethodDelete, []string{"/api/projects/" + id}, nil)
	if err != nil {
		return err
	}
	return decode(resp, nil)
}

// Tasks

func (c *Client) ListTasks(ctx context.Context, query string) ([]Task, PageMeta, error) {
	path := "/api/tasks"
	if query != "" {
		path += "?" + query
	}
	resp, err := c.do(ctx, http.MethodGet, []string{path}, nil)
	if err != nil {
		return nil, PageMeta{}, err
	}
	var result page[Task]
	if err := decode(resp, &result); err != nil {
		return nil, PageMeta{}, err
	}
	return result.Data, result.Meta, nil
}

func (c *Client) GetTask(ctx context.Context, id string) (*Task, error) {
	resp, err := c.do(ctx, http.MethodGet, []string{"/api/tasks/" + id}, nil)
	if err != nil {
		return nil, err
	}
	var task Task
	if err := decode(resp, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *Client) CreateTask(ctx context.Context, task Task) (*Task, error) {
	task.Status = normalizeTaskStatus(task.Status)
	task.Priority = normalizePriority(task.Priority)
	resp, err := c.do(ctx, http.MethodPost, []string{"/api/tasks"}, task)
	if err != nil {
		return nil, err
	}
	var created Task
	if err := decode(resp, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) UpdateTask(ctx context.Context, id string, changes map[string]interface{}) (*Task, error) {
	normalizeChangeSet(changes, "status", normalizeTaskStatus)
	normalizeChangeSet(changes, "priority", normalizePriority)
	resp, err := c.do(ctx, http.MethodPut, []string{"/api/tasks/" + id}, changes)
	if err != nil {
		return nil, err
	}
	var updated Task
	if err := decode(resp, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	resp, err := c.do(ctx, http.MethodDelete, []string{"/api/tasks/" + id}, nil)
	if err != nil {
		return err
	}
	return decode(resp, nil)
}

// Users

func (c *Client) ListUsers(ctx context.Context, query string) ([]User, PageMeta, error) {
	path := "/api/users"
	if query != "" {
		path += "?" + query
	}
	resp, err := c.do(ctx, http.MethodGet, []string{path}, nil)
	if err != nil {
		return nil, PageMeta{}, err
	}
	var result page[User]
	if err := decode(resp, &result); err != nil {
		return nil, PageMeta{}, err
	}
	return result.Data, result.Meta, nil
}

func (c *Client) GetUser(ctx context.Context, id string) (*User, error) {
	resp, err := c.do(ctx, http.MethodGet, []string{"/api/users/" + id}, nil)
	if err != nil {
		return nil, err
	}
	var user User
	if err := decode(resp, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) UpdateUser(ctx context.Context, id string, changes map[string]interface{}) (*User, error) {
	resp, err := c.do(ctx, http.MethodPut, []string{"/api/users/" + id}, changes)
	if err != nil {
		return nil, err
	}
	var updated User
	if err := decode(resp, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (c *Client) DeleteUser(ctx context.Context, id string) error {
	resp, err := c.do(ctx, http.MethodDelete, []string{"/api/users/" + id}, nil)
	if err != nil {
		return err
	}
	return decode(resp, nil)
}

func normalizeChangeSet(changes map[string]interface{}, key string, fn func(string) string) {
	if changes == nil {
		return
	}
	if v, ok := changes[key].(string); ok {
		changes[key] = fn(v)
	}
}
