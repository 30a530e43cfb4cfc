package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"emg-service/internal/config"
	"emg-service/internal/model"
)

func TestFactory_Create(t *testing.T) {
	cfg := config.Default()
	factory := NewFactory(&cfg.Device, zap.NewNop())

	wifi, err := factory.Create(model.WifiMethod("192.168.4.1", 8080), nil)
	require.NoError(t, err)
	assert.IsType(t, &TCPTransport{}, wifi)
	assert.Equal(t, "192.168.4.1:8080", wifi.Target())
	assert.Equal(t, model.ConnectionTypeWifi, wifi.GetProtocolType())

	device := &model.BluetoothDevice{
		Name:    "EMG Glove",
		Address: "AA:BB:CC:DD:EE:FF",
		Path:    "/org/bluez/hci1/dev_AA_BB_CC_DD_EE_FF",
		Adapter: "hci1",
	}
	bt, err := factory.Create(model.BluetoothMethod(device.Name, device.Address), device)
	require.NoError(t, err)
	assert.Equal(t, model.ConnectionTypeBluetooth, bt.GetProtocolType())
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", bt.Target())

	serialTransport, err := factory.Create(model.SerialMethod("/dev/ttyACM0", 0), nil)
	require.NoError(t, err)
	require.IsType(t, &SerialTransport{}, serialTransport)
	assert.Equal(t, cfg.Device.Serial.BaudRate, serialTransport.(*SerialTransport).config.BaudRate)
}

func TestValidateMethod(t *testing.T) {
	tests := []struct {
		name    string
		method  model.ConnectionMethod
		wantErr bool
	}{
		{"wifi", model.WifiMethod("glove.local", 80), false},
		{"wifi port zero", model.WifiMethod("glove.local", 0), true},
		{"wifi port too big", model.WifiMethod("glove.local", 65536), true},
		{"wifi empty host", model.WifiMethod(" ", 80), true},
		{"bluetooth", model.BluetoothMethod("", "AA:BB:CC:DD:EE:FF"), false},
		{"bluetooth empty address", model.BluetoothMethod("Glove", ""), true},
		{"serial", model.SerialMethod("/dev/ttyUSB0", 9600), false},
		{"serial empty port", model.SerialMethod("", 9600), true},
		{"unknown", model.ConnectionMethod{Type: "USB"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMethod(tt.method)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
