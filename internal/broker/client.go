package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tksfz/trampoline/internal/task"
)

// Client is a TCP client speaking newline-delimited JSON-RPC to a
// broker process: connect, subscribe (exclusive), publish, ack. It
// implements both Consumer and Producer, sharing one connection for
// both directions, the same shape as the agent framework's own
// broker client.
type Client struct {
	address          string
	subscriptionName string
	debug            bool

	conn    net.Conn
	encoder *json.Encoder
	decoder *json.Decoder
	mux     sync.Mutex

	reqID int64

	responseChans map[string]chan *rpcResponse
	responseMux   sync.RWMutex

	messages chan *Envelope
	pullErr  chan error
}

type rpcRequest struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type rpcResponse struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// wireMessage is a subscription delivery: an opaque payload addressed
// to a topic, with a broker-assigned id used for acking.
type wireMessage struct {
	ID      string          `json:"id"`
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// NewClient builds a disconnected client. Connect must be called
// before Subscribe or Publish.
func NewClient(address, subscriptionName string, debug bool) *Client {
	return &Client{
		address:          address,
		subscriptionName: subscriptionName,
		debug:            debug,
		responseChans:    make(map[string]chan *rpcResponse),
		messages:         make(chan *Envelope, 256),
		pullErr:          make(chan error, 1),
	}
}

// Connect dials the broker, starts the background listener, and
// registers this client with the broker.
func (c *Client) Connect(ctx context.Context) error {
	c.mux.Lock()
	if c.conn != nil {
		c.mux.Unlock()
		return nil
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", c.address)
	if err != nil {
		c.mux.Unlock()
		return fmt.Errorf("connect to broker at %s: %w", c.address, err)
	}

	c.conn = conn
	c.encoder = json.NewEncoder(conn)
	c.decoder = json.NewDecoder(conn)
	c.mux.Unlock()

	go c.listen()

	if _, err := c.call("connect", map[string]interface{}{"client_id": uuid.New().String()}); err != nil {
		return fmt.Errorf("register with broker: %w", err)
	}

	if c.debug {
		log.Printf("broker: connected to %s", c.address)
	}
	return nil
}

// Subscribe requests an exclusive subscription over topics under
// subscriptionName. Deliveries across every subscribed topic are
// fanned into the single channel Pull reads from — the bus may
// interleave topics, and the dispatch loop makes no cross-type
// ordering promise.
func (c *Client) Subscribe(topics []string) error {
	for _, topic := range topics {
		params := map[string]interface{}{
			"topic":        topic,
			"subscription": c.subscriptionName,
			"mode":         "exclusive",
		}
		if _, err := c.call("subscribe", params); err != nil {
			return fmt.Errorf("subscribe to topic %q: %w", topic, err)
		}
		if c.debug {
			log.Printf("broker: subscribed to %q as %q (exclusive)", topic, c.subscriptionName)
		}
	}
	return nil
}

// Publish marshals msg and sends it to the broker on topic.
func (c *Client) Publish(ctx context.Context, topic string, msg task.Message) error {
	payload, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("publish to %q: encode message: %w", topic, err)
	}

	params := map[string]interface{}{
		"topic":   topic,
		"payload": json.RawMessage(payload),
	}
	_, err = c.call("publish", params)
	if err != nil {
		return fmt.Errorf("publish to %q: %w", topic, err)
	}
	return nil
}

// Pull blocks until a message is available, ctx is cancelled, or the
// subscription stream ends.
func (c *Client) Pull(ctx context.Context) (*Envelope, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-c.pullErr:
		return nil, err
	case env := <-c.messages:
		return env, nil
	}
}

// Ack acknowledges env synchronously. Per the dispatch loop's policy
// this is called before the Forwarder invokes a handler.
func (c *Client) Ack(ctx context.Context, env *Envelope) error {
	_, err := c.call("ack", map[string]interface{}{
		"id":           env.ID,
		"subscription": c.subscriptionName,
	})
	if err != nil {
		return fmt.Errorf("ack %s: %w", env.ID, err)
	}
	return nil
}

// Close disconnects from the broker.
func (c *Client) Close() error {
	c.mux.Lock()
	defer c.mux.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.encoder = nil
	c.decoder = nil
	return err
}

func (c *Client) call(method string, params interface{}) (json.RawMessage, error) {
	c.mux.Lock()
	encoder := c.encoder
	c.mux.Unlock()
	if encoder == nil {
		return nil, fmt.Errorf("not connected to broker")
	}

	c.reqID++
	reqID := fmt.Sprintf("req_%d", c.reqID)

	paramsBytes, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}

	respChan := make(chan *rpcResponse, 1)
	c.responseMux.Lock()
	c.responseChans[reqID] = respChan
	c.responseMux.Unlock()

	req := rpcRequest{ID: reqID, Method: method, Params: paramsBytes}
	c.mux.Lock()
	err = c.encoder.Encode(req)
	c.mux.Unlock()
	if err != nil {
		c.responseMux.Lock()
		delete(c.responseChans, reqID)
		c.responseMux.Unlock()
		return nil, fmt.Errorf("send request: %w", err)
	}

	select {
	case resp := <-respChan:
		if resp.Error != nil {
			return nil, fmt.Errorf("broker error: %s (code %d)", resp.Error.Message, resp.Error.Code)
		}
		return resp.Result, nil
	case <-time.After(30 * time.Second):
		c.responseMux.Lock()
		delete(c.responseChans, reqID)
		c.responseMux.Unlock()
		return nil, fmt.Errorf("request %s timed out", method)
	}
}

// listen runs in the background demultiplexing JSON-RPC responses
// from subscription deliveries on the single connection.
func (c *Client) listen() {
	defer func() {
		if r := recover(); r != nil && c.debug {
			log.Printf("broker: listener panic: %v", r)
		}
	}()

	for {
		c.mux.Lock()
		decoder := c.decoder
		c.mux.Unlock()
		if decoder == nil {
			return
		}

		var raw json.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			select {
			case c.pullErr <- fmt.Errorf("broker connection closed: %w", err):
			default:
			}
			return
		}

		var discriminator struct {
			ID      string          `json:"id"`
			Result  json.RawMessage `json:"result,omitempty"`
			Error   *rpcError       `json:"error,omitempty"`
			Topic   string          `json:"topic"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal(raw, &discriminator); err != nil {
			if c.debug {
				log.Printf("broker: could not parse frame: %v", err)
			}
			continue
		}

		if discriminator.Result != nil || discriminator.Error != nil {
			c.responseMux.RLock()
			ch, ok := c.responseChans[discriminator.ID]
			c.responseMux.RUnlock()
			if ok {
				resp := &rpcResponse{ID: discriminator.ID, Result: discriminator.Result, Error: discriminator.Error}
				select {
				case ch <- resp:
				default:
				}
				c.responseMux.Lock()
				delete(c.responseChans, discriminator.ID)
				c.responseMux.Unlock()
			}
			continue
		}

		if discriminator.Topic != "" {
			var wm wireMessage
			if err := json.Unmarshal(raw, &wm); err != nil {
				if c.debug {
					log.Printf("broker: could not decode delivery: %v", err)
				}
				continue
			}
			select {
			case c.messages <- &Envelope{ID: wm.ID, Topic: wm.Topic, Payload: wm.Payload}:
			default:
				if c.debug {
					log.Printf("broker: dropped delivery on %q, message channel full", wm.Topic)
				}
			}
		}
	}
}
