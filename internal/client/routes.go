// ABOUTME: Playground REST route templates, expanded by resty path params
// ABOUTME: Collections are agents, teams, or workflows depending on the target kind

package client

import (
	"net/url"
	"strings"

	"github.com/2389/coven-playground/internal/model"
)

const (
	routeStatus        = "/v1/playground/status"
	routeCatalog       = "/v1/playground/{collection}"
	routeEntity        = "/v1/playground/{collection}/{id}"
	routeSessions      = "/v1/playground/{collection}/{id}/sessions"
	routeSession       = "/v1/playground/{collection}/{id}/sessions/{session_id}"
	routeRenameSession = "/v1/playground/{collection}/{id}/sessions/{session_id}/rename"
	routeSessionState  = "/v1/playground/{collection}/{id}/sessions/{session_id}/state"
	routeBranchSession = "/v1/playground/sessions/branch"
	routeDocuments     = "/documents"
)

const (
	collectionAgents    = "agents"
	collectionTeams     = "teams"
	collectionWorkflows = "workflows"
)

// collection maps a target kind to its URL collection segment.
func collection(kind model.TargetKind) string {
	switch kind {
	case model.TargetTeam:
		return collectionTeams
	case model.TargetWorkflow:
		return collectionWorkflows
	default:
		return collectionAgents
	}
}

func targetParams(t model.Target) map[string]string {
	return map[string]string{
		"collection": collection(t.Kind),
		"id":         t.ID,
	}
}

func sessionParams(t model.Target, sessionID string) map[string]string {
	p := targetParams(t)
	p["session_id"] = sessionID
	return p
}

// RunURL returns the streaming run endpoint for t under baseURL.
func RunURL(baseURL string, t model.Target) string {
	return strings.TrimRight(baseURL, "/") +
		"/v1/playground/" + collection(t.Kind) + "/" + url.PathEscape(t.ID) + "/runs"
}
