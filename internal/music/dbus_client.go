package music

import (
	"context"
	"strings"

	"github.com/godbus/dbus/v5"
)

// DBusClient is the subset of the session bus the MPRIS client needs.
//
//go:generate mockgen -destination=mocks/dbus_client_mock.go -package=mocks github.com/adammhaile/elpis/internal/music DBusClient
type DBusClient interface {
	// Close closes the D-Bus connection
	Close() error

	// ListNames returns all names on the bus
	ListNames(ctx context.Context) ([]string, error)

	// GetProperty retrieves a property from a D-Bus object
	// dest: The bus name (e.g., "org.mpris.MediaPlayer2.spotify")
	// path: The object path (e.g., "/org/mpris/MediaPlayer2")
	// prop: The property name (e.g., "org.mpris.MediaPlayer2.Player.Metadata")
	GetProperty(ctx context.Context, dest, path, prop string) (dbus.Variant, error)

	// Call invokes a method without arguments and discards the reply
	Call(ctx context.Context, dest, path, method string) error
}

// StdDBusClient is the real implementation using godbus
type StdDBusClient struct {
	conn *dbus.Conn
}

// NewStdDBusClient creates a real D-Bus client connected to the session bus
func NewStdDBusClient() (*StdDBusClient, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, err
	}
	return &StdDBusClient{conn: conn}, nil
}

// Close closes the D-Bus connection
func (c *StdDBusClient) Close() error {
	return c.conn.Close()
}

// ListNames returns all names on the bus
func (c *StdDBusClient) ListNames(ctx context.Context) ([]string, error) {
	var names []string
	err := c.conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.ListNames", 0).Store(&names)
	return names, err
}

// GetProperty retrieves a property from a D-Bus object
func (c *StdDBusClient) GetProperty(ctx context.Context, dest, path, prop string) (dbus.Variant, error) {
	var v dbus.Variant
	iface, name := splitProperty(prop)
	err := c.conn.Object(dest, dbus.ObjectPath(path)).
		CallWithContext(ctx, "org.freedesktop.DBus.Properties.Get", 0, iface, name).
		Store(&v)
	return v, err
}

// Call invokes a method without arguments and discards the reply
func (c *StdDBusClient) Call(ctx context.Context, dest, path, method string) error {
	return c.conn.Object(dest, dbus.ObjectPath(path)).CallWithContext(ctx, method, 0).Err
}

// splitProperty splits "org.mpris.MediaPlayer2.Player.Metadata" into the
// interface and the property name.
func splitProperty(prop string) (iface, name string) {
	i := strings.LastIndex(prop, ".")
	if i < 0 {
		return "", prop
	}
	return prop[:i], prop[i+1:]
}
