// Package admission implements the validating webhook (spec.md §4.5,
// §6.2): a synchronous AdmissionReview v1 HTTP handler that dispatches
// on request kind and applies the same invariants the inbound/outbound
// indexes enforce, so a rejected object is never seen half-applied by
// an index.
package admission

import (
	admissionv1 "k8s.io/api/admission/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/serializer"
)

var (
	scheme = runtime.NewScheme()
	codecs = serializer.NewCodecFactory(scheme)
	deserializer = codecs.UniversalDeserializer()
)

func init() {
	if err := admissionv1.AddToScheme(scheme); err != nil {
		panic(err)
	}
}
