package helper

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ryanuber/columnize"
	"github.com/spf13/cobra"
)

const (
	// APIFlag points a command at the operator API of a running node
	APIFlag = "api"

	// CallerFlag attributes the request to an account other than the node admin
	CallerFlag = "caller"

	// DefaultAPIAddress is the default operator API endpoint
	DefaultAPIAddress = "http://127.0.0.1:9650"

	callerHeader = "X-Omniward-Caller"
)

var client = &http.Client{Timeout: 30 * time.Second}

// RegisterAPIFlags registers the operator API connection flags
func RegisterAPIFlags(cmd *cobra.Command) {
	cmd.Flags().String(
		APIFlag,
		DefaultAPIAddress,
		"the operator API address of the node",
	)

	cmd.Flags().String(
		CallerFlag,
		"",
		"the account address the request acts as (defaults to the node admin)",
	)
}

// GetAPIAddress reads the operator API address from the command flags
func GetAPIAddress(cmd *cobra.Command) string {
	addr := cmd.Flag(APIFlag).Value.String()
	if addr == "" {
		return DefaultAPIAddress
	}

	return addr
}

// GetCaller reads the caller account from the command flags
func GetCaller(cmd *cobra.Command) string {
	return cmd.Flag(CallerFlag).Value.String()
}

// APIGet performs a GET against the operator API and decodes the response
func APIGet(baseURL, path, caller string, target interface{}) error {
	req, err := http.NewRequest(http.MethodGet, baseURL+path, nil)
	if err != nil {
		return err
	}

	return doRequest(req, caller, target)
}

// APIPost performs a POST against the operator API and decodes the response
func APIPost(baseURL, path, caller string, body interface{}, target interface{}) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	return doRequest(req, caller, target)
}

func doRequest(req *http.Request, caller string, target interface{}) error {
	if caller != "" {
		req.Header.Set(callerHeader, caller)
	}

	res, err := client.Do(req)
	if err != nil {
		return err
	}

	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}

	if res.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}

		if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("%s", apiErr.Error)
		}

		return fmt.Errorf("request failed with status %d", res.StatusCode)
	}

	if target == nil {
		return nil
	}

	return json.Unmarshal(raw, target)
}

// FormatList formats a list, using a specific blank value replacement
func FormatList(in []string) string {
	columnConf := columnize.DefaultConfig()
	columnConf.Empty = "<none>"

	return columnize.Format(in, columnConf)
}

// FormatKV formats key value pairs:
//
// Key = Value
//
// Key = <none>
func FormatKV(in []string) string {
	columnConf := columnize.DefaultConfig()
	columnConf.Empty = "<none>"
	columnConf.Glue = " = "

	return columnize.Format(in, columnConf)
}
