/*
   Copyright 2021 Joseph Cumines

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package forester

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// RemoteAction describes a leaf whose tick body is an HTTP POST to a
// registered endpoint: arguments and a serializable context summary go
// out as the request body, and the response body is a TickResult.
type RemoteAction struct {
	Host   string
	Port   uint16
	Path   string
	Client *http.Client
}

// remoteRequest is the wire shape POSTed to a remote action.
type remoteRequest struct {
	Args RtArgs    `json:"args"`
	Ctx  RemoteRef `json:"ctx"`
}

// remoteResponse is the wire shape a remote action must answer with.
type remoteResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

func (r RemoteAction) url() string {
	return fmt.Sprintf("http://%s:%d%s", r.Host, r.Port, r.Path)
}

func (r RemoteAction) client() *http.Client {
	if r.Client != nil {
		return r.Client
	}
	return http.DefaultClient
}

// invoke performs the HTTP round trip. Any transport, encoding, or
// protocol error is converted to a Failure with a diagnostic reason per
// spec.md SS7 - remote calls never surface a Go error above the Keeper.
func (r RemoteAction) invoke(ctx context.Context, args RtArgs, ref LocalRef) (Status, string) {
	body, err := json.Marshal(remoteRequest{
		Args: args,
		Ctx:  NewRemoteRef(ref.CurrentTick(), r.Port, ref.Env()),
	})
	if err != nil {
		return Failure, fmt.Sprintf("remote action: encode request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url(), bytes.NewReader(body))
	if err != nil {
		return Failure, fmt.Sprintf("remote action: build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client().Do(req)
	if err != nil {
		return Failure, fmt.Sprintf("remote action: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Failure, fmt.Sprintf("remote action: unexpected status %s", resp.Status)
	}

	var out remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Failure, fmt.Sprintf("remote action: decode response: %v", err)
	}

	switch out.Status {
	case "success":
		return Success, ""
	case "failure":
		return Failure, out.Reason
	case "running":
		return Running, ""
	default:
		return Failure, fmt.Sprintf("remote action: unrecognised status %q", out.Status)
	}
}
