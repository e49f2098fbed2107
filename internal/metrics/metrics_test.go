package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	Register()
	Register()

	assert.NotPanics(t, func() {
		IncHTTP("slots")
		IncSlotResolution("ok")
		IncNotification("email", "sent")
	})

	before := testutil.ToFloat64(bookings.WithLabelValues("conflict"))
	IncBooking("conflict")
	assert.Equal(t, before+1, testutil.ToFloat64(bookings.WithLabelValues("conflict")))
}
