package hostutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateHost(t *testing.T) {
	for _, ok := range []string{"10.0.0.1", "239.255.0.1", "ff15::1", "[::1]", "cam-01.site.local", "localhost"} {
		assert.NoError(t, ValidateHost(ok), ok)
	}
	for _, bad := range []string{"", "300.1.1.1", "1.2.3.256", "::zz", "-cam", "cam_01", "a..b"} {
		assert.Error(t, ValidateHost(bad), bad)
	}
}

func TestIsMulticast(t *testing.T) {
	assert.True(t, IsMulticast("239.1.1.1"))
	assert.True(t, IsMulticast("ff15::1"))
	assert.False(t, IsMulticast("10.0.0.1"))
	assert.False(t, IsMulticast("cam.local"))
}
