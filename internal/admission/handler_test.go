package admission

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/require"
	admissionv1 "k8s.io/api/admission/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
)

func postReview(t *testing.T, h *Handler, kind string, spec map[string]interface{}, meta map[string]interface{}) admissionv1.AdmissionResponse {
	t.Helper()
	obj := map[string]interface{}{"metadata": meta, "spec": spec}
	objRaw, err := json.Marshal(obj)
	require.NoError(t, err)

	review := admissionv1.AdmissionReview{
		TypeMeta: metav1.TypeMeta{APIVersion: "admission.k8s.io/v1", Kind: "AdmissionReview"},
		Request: &admissionv1.AdmissionRequest{
			UID:    "uid-0",
			Kind:   metav1.GroupVersionKind{Kind: kind},
			Object: runtime.RawExtension{Raw: objRaw},
		},
	}
	body, err := json.Marshal(review)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var out admissionv1.AdmissionReview
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.NotNil(t, out.Response)
	return *out.Response
}

func TestNonPostOrNonRootPathIs404(t *testing.T) {
	h := NewHandler(logr.Discard())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuthorizationPolicyRejectsMixedMeshTLSAndServiceAccount(t *testing.T) {
	h := NewHandler(logr.Discard())
	resp := postReview(t, h, "AuthorizationPolicy", map[string]interface{}{
		"targetRef": map[string]string{"kind": "Server", "name": "srv-0"},
		"requiredAuthenticationRefs": []map[string]string{
			{"kind": "MeshTLSAuthentication", "name": "mtls-0"},
			{"kind": "ServiceAccount", "name": "sa-0"},
		},
	}, map[string]interface{}{"namespace": "ns-0", "name": "authz-0"})

	require.False(t, resp.Allowed)
	require.Contains(t, resp.Result.Message, "mixed")
}

func TestAuthorizationPolicyAcceptsSingleNetworkRef(t *testing.T) {
	h := NewHandler(logr.Discard())
	resp := postReview(t, h, "AuthorizationPolicy", map[string]interface{}{
		"targetRef": map[string]string{"kind": "Server", "name": "srv-0"},
		"requiredAuthenticationRefs": []map[string]string{
			{"kind": "NetworkAuthentication", "name": "net-0"},
		},
	}, map[string]interface{}{"namespace": "ns-0", "name": "authz-0"})

	require.True(t, resp.Allowed)
}

func TestEgressNetworkRejectsExceptNotContainedInCidr(t *testing.T) {
	h := NewHandler(logr.Discard())
	resp := postReview(t, h, "EgressNetwork", map[string]interface{}{
		"networks": []map[string]interface{}{
			{"cidr": "10.0.0.0/24", "except": []string{"10.1.0.0/28"}},
		},
	}, map[string]interface{}{"namespace": "ns-0", "name": "egress-0"})

	require.False(t, resp.Allowed)
	require.Contains(t, resp.Result.Message, "not contained")
}

func TestHTTPRouteRejectsNonAbsolutePathMatch(t *testing.T) {
	h := NewHandler(logr.Discard())
	resp := postReview(t, h, "HTTPRoute", map[string]interface{}{
		"rules": []map[string]interface{}{
			{"matches": []map[string]interface{}{
				{"path": map[string]string{"type": "PathPrefix", "value": "no-leading-slash"}},
			}},
		},
	}, map[string]interface{}{"namespace": "ns-0", "name": "route-0"})

	require.False(t, resp.Allowed)
	require.Contains(t, resp.Result.Message, "absolute")
}

func TestRateLimitPolicyRejectsIdentityAboveTotal(t *testing.T) {
	h := NewHandler(logr.Discard())
	resp := postReview(t, h, "HttpLocalRateLimitPolicy", map[string]interface{}{
		"targetRef": map[string]string{"kind": "Server"},
		"total":     map[string]uint32{"requestsPerSecond": 100},
		"identity":  map[string]uint32{"requestsPerSecond": 200},
	}, map[string]interface{}{"namespace": "ns-0", "name": "rl-0"})

	require.False(t, resp.Allowed)
	require.Contains(t, resp.Result.Message, "identity.requestsPerSecond")
}
