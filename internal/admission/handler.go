package admission

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-logr/logr"
	admissionv1 "k8s.io/api/admission/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
)

// Handler serves the AdmissionReview webhook (spec.md §6.2): standard
// Kubernetes AdmissionReview v1 over HTTPS POST "/"; any other
// method/path is a 404.
type Handler struct {
	log logr.Logger
}

func NewHandler(log logr.Logger) *Handler {
	return &Handler{log: log.WithName("admission")}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "reading request body", http.StatusBadRequest)
		return
	}

	obj, gvk, err := deserializer.Decode(body, nil, &admissionv1.AdmissionReview{})
	if err != nil {
		http.Error(w, "decoding AdmissionReview: "+err.Error(), http.StatusBadRequest)
		return
	}
	review, ok := obj.(*admissionv1.AdmissionReview)
	if !ok || review.Request == nil {
		http.Error(w, "unexpected admission object "+gvk.String(), http.StatusBadRequest)
		return
	}

	out := admissionv1.AdmissionReview{
		TypeMeta: review.TypeMeta,
		Response: h.review(review.Request),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		h.log.Error(err, "encoding AdmissionReview response")
	}
}

func (h *Handler) review(req *admissionv1.AdmissionRequest) *admissionv1.AdmissionResponse {
	var obj typedObject
	if err := json.Unmarshal(req.Object.Raw, &obj); err != nil {
		return deny(req.UID, "decoding object: "+err.Error())
	}

	var err error
	switch req.Kind.Kind {
	case "AuthorizationPolicy":
		err = validateAuthorizationPolicy(obj.Metadata.Namespace, obj.Spec)
	case "Server":
		err = validateServer(obj.Spec)
	case "NetworkAuthentication", "EgressNetwork":
		err = validateNetworks(obj.Spec)
	case "HTTPRoute", "GRPCRoute":
		err = validateHTTPOrGRPCRoute(obj.Spec)
	case "TLSRoute", "TCPRoute":
		err = validateTLSOrTCPRoute(obj.Spec)
	case "HttpLocalRateLimitPolicy":
		err = validateRateLimitPolicy(obj.Spec)
	default:
		h.log.V(1).Info("admitting unrecognized kind without validation", "kind", req.Kind.Kind)
	}

	if err != nil {
		h.log.Info("rejecting resource", "kind", req.Kind.Kind, "namespace", obj.Metadata.Namespace, "name", obj.Metadata.Name, "reason", err.Error())
		return deny(req.UID, err.Error())
	}
	return &admissionv1.AdmissionResponse{UID: req.UID, Allowed: true}
}

func deny(uid types.UID, message string) *admissionv1.AdmissionResponse {
	return &admissionv1.AdmissionResponse{
		UID:     uid,
		Allowed: false,
		Result:  &metav1.Status{Message: message},
	}
}
