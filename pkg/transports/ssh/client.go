package ssh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/orgforge/orgforge/pkg/telemetry"
)

// Client implements Transport over one SSH connection. It is safe for
// concurrent use; commands run in separate sessions on the shared
// connection.
type Client struct {
	config *Config
	log    *telemetry.Logger

	mu          sync.Mutex
	conn        *ssh.Client
	connected   bool
	connectedAt time.Time
	lastUsedAt  time.Time
	stopKeep    chan struct{}
}

// NewClient validates config and returns an unconnected client. A nil
// logger falls back to the ambient logger.
func NewClient(config *Config, log *telemetry.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ssh config: %w", err)
	}
	if log == nil {
		log = telemetry.FromContext(context.Background())
	}
	return &Client{
		config: config,
		log:    log.NewComponentLogger("ssh").WithField("host", config.Host),
	}, nil
}

// Connect establishes the SSH connection. An existing healthy connection
// is kept; a dead one is replaced.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected && c.conn != nil {
		if err := c.probeLocked(); err == nil {
			return nil
		}
		c.log.Warn("existing connection is dead, reconnecting")
		c.teardownLocked()
	}

	clientConfig, err := c.config.buildClientConfig()
	if err != nil {
		return authError("connect", err)
	}

	address := c.config.Address()
	c.log.WithField("address", address).Debug("establishing connection")

	connCh := make(chan *ssh.Client, 1)
	errCh := make(chan error, 1)
	go func() {
		conn, err := ssh.Dial("tcp", address, clientConfig)
		if err != nil {
			errCh <- err
			return
		}
		connCh <- conn
	}()

	select {
	case <-ctx.Done():
		// Reap a dial that completes after the caller gave up.
		go func() {
			select {
			case conn := <-connCh:
				conn.Close()
			case <-errCh:
			}
		}()
		return tempError("connect", ctx.Err())
	case err := <-errCh:
		return tempError("connect", err)
	case conn := <-connCh:
		c.conn = conn
		c.connected = true
		c.connectedAt = time.Now()
		c.lastUsedAt = c.connectedAt

		if c.config.KeepAliveInterval > 0 {
			c.stopKeep = make(chan struct{})
			go c.keepAlive(c.stopKeep)
		}

		c.log.WithField("address", address).Info("connection established")
		return nil
	}
}

// Close tears down the connection. Closing a disconnected client is a
// no-op.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected || c.conn == nil {
		return nil
	}
	c.log.Debug("closing connection")
	if err := c.teardownLocked(); err != nil {
		return opError("close", err)
	}
	return nil
}

// teardownLocked stops keep-alive and closes the connection. Callers hold
// the mutex.
func (c *Client) teardownLocked() error {
	if c.stopKeep != nil {
		close(c.stopKeep)
		c.stopKeep = nil
	}
	var err error
	if c.conn != nil {
		err = c.conn.Close()
	}
	c.conn = nil
	c.connected = false
	return err
}

// Connected reports whether the client holds a connection.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// HealthCheck verifies the connection by running a trivial command.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return tempError("healthcheck", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected || c.conn == nil {
		return opError("healthcheck", fmt.Errorf("not connected"))
	}
	return c.probeLocked()
}

// probeLocked runs `true` in a fresh session. Callers hold the mutex.
func (c *Client) probeLocked() error {
	session, err := c.conn.NewSession()
	if err != nil {
		return tempError("healthcheck", err)
	}
	defer session.Close()

	if err := session.Run("true"); err != nil {
		return tempError("healthcheck", err)
	}
	return nil
}

// keepAlive sends periodic keep-alive requests until stopped. After
// KeepAliveMaxMisses consecutive failures the connection is declared dead
// and torn down.
func (c *Client) keepAlive(stop <-chan struct{}) {
	ticker := time.NewTicker(c.config.KeepAliveInterval)
	defer ticker.Stop()

	misses := 0
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		c.mu.Lock()
		conn := c.conn
		alive := c.connected
		c.mu.Unlock()
		if !alive || conn == nil {
			return
		}

		_, _, err := conn.SendRequest("keepalive@openssh.com", true, nil)
		if err != nil {
			misses++
			c.log.WithError(err).WithField("misses", misses).Warn("keep-alive failed")
			if misses >= c.config.KeepAliveMaxMisses {
				c.log.Error("keep-alive misses exhausted, dropping connection")
				c.mu.Lock()
				// Another goroutine may have replaced the connection while
				// this probe was in flight.
				if c.conn == conn {
					_ = c.teardownLocked()
				}
				c.mu.Unlock()
				return
			}
			continue
		}

		misses = 0
		c.mu.Lock()
		c.lastUsedAt = time.Now()
		c.mu.Unlock()
	}
}

// Info describes the current connection.
func (c *Client) Info() ConnectionInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	return ConnectionInfo{
		Host:         c.config.Host,
		Port:         c.config.Port,
		User:         c.config.User,
		ConnectedAt:  c.connectedAt,
		LastActivity: c.lastUsedAt,
	}
}

// acquire returns the live connection for a new session and stamps the
// activity time.
func (c *Client) acquire(op string) (*ssh.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected || c.conn == nil {
		return nil, opError(op, fmt.Errorf("not connected"))
	}
	c.lastUsedAt = time.Now()
	return c.conn, nil
}
