package apiclient

import "fmt"

// getResource performs a GET request and decodes the response into T.
func getResource[T any](c *Client, path string) (*T, error) {
	var result T
	if err := c.get(path, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// listResources performs a GET request and decodes the response into []T.
func listResources[T any](c *Client, path string) ([]T, error) {
	var results []T
	if err := c.get(path, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// updateResource performs a PUT request with body and decodes the response into T.
func updateResource[T any](c *Client, path string, body any) (*T, error) {
	var result T
	if err := c.put(path, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// deleteResource performs a DELETE request against path.
func deleteResource(c *Client, path string) error {
	return c.delete(path)
}

// resourcePath formats a path template with the given arguments.
func resourcePath(format string, args ...any) string {
	return fmt.Sprintf(format, args...)
}
