package net

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/FabioSeixas/exchange/internal/common"
	"github.com/FabioSeixas/exchange/internal/engine"
	"github.com/FabioSeixas/exchange/internal/utils"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const (
	MAX_RECV_SIZE      = 4 * 1024
	defaultConnTimeout = time.Minute
)

var (
	ErrImproperConversion = errors.New("improper type conversion")
	ErrClientDoesNotExist = errors.New("client does not exist")
)

// ClientSession contains relevant information pertaining to an individual
// connected TCP session.
type ClientSession struct {
	conn net.Conn
}

// ClientMessage links a message to the client sending it.
type ClientMessage struct {
	clientAddress string
	message       Message
}

type Server struct {
	address            string
	port               int
	engine             *engine.Engine
	pool               utils.WorkerPool
	cancel             context.CancelFunc
	clientSessions     map[string]ClientSession
	clientSessionsLock sync.Mutex
	ownerAddresses     map[string]string // owner -> client address
	clientMessages     chan ClientMessage
}

func New(address string, port int, eng *engine.Engine, workers uint) *Server {
	return &Server{
		address:        address,
		port:           port,
		engine:         eng,
		pool:           utils.NewWorkerPool(workers),
		clientSessions: make(map[string]ClientSession),
		ownerAddresses: make(map[string]string),
		clientMessages: make(chan ClientMessage, 1),
	}
}

func (s *Server) Shutdown() {
	log.Info().Msg("server shutting down")
	s.cancel()
}

func (s *Server) Run(ctx context.Context) {
	defer s.Shutdown()

	// Setup a cancel on the context for future shutdown.
	ctx, s.cancel = context.WithCancel(ctx)
	t, ctx := tomb.WithContext(ctx)

	// Start a tcp listener.
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		log.Error().Err(err).Msg("unable to start listener")
		return
	}
	defer func() {
		if err := listener.Close(); err != nil {
			log.Error().Err(err).Msg("unable to close listener")
		}
	}()

	// Start the worker pool.
	s.pool.Setup(t, s.handleConnection)

	// Start the session handler.
	t.Go(func() error {
		return s.sessionHandler(t)
	})

	log.Info().Str("address", s.address).Int("port", s.port).Msg("server running")

	// Start accepting connections.
	for {
		select {
		case <-ctx.Done():
			return
		default:
			conn, err := listener.Accept()
			if err != nil {
				log.Error().Err(err).Msg("error accepting client")
				continue
			}

			log.Info().
				Str("address", conn.RemoteAddr().String()).
				Msg("new client added")
			// Add the client to client sessions we are tracking.
			// We expect to potentially maintain a long TCP session.
			s.addClientSession(conn)

			// Pass over the connection to be read from.
			s.pool.AddTask(conn)
		}
	}
}

// ReportTrade pushes both execution reports of a trade to the sessions of the
// two owners involved. A missing or dead session is dropped, not retried; the
// trade itself already happened.
func (s *Server) ReportTrade(trade common.Trade, _ error) error {
	takerReport, makerReport := generateWireTradeReports(trade)
	if err := s.sendToOwner(trade.TakerOwner, takerReport); err != nil {
		log.Warn().Err(err).Str("owner", trade.TakerOwner).Msg("taker report not delivered")
	}
	if err := s.sendToOwner(trade.MakerOwner, makerReport); err != nil {
		log.Warn().Err(err).Str("owner", trade.MakerOwner).Msg("maker report not delivered")
	}
	return nil
}

// ReportError addresses a rejection to the owner of the failed order.
func (s *Server) ReportError(owner string, reason error) error {
	return s.sendToOwner(owner, generateWireErrorReport(reason))
}

func (s *Server) sendToOwner(owner string, payload []byte) error {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	address, ok := s.ownerAddresses[owner]
	if !ok {
		return ErrClientDoesNotExist
	}
	client, ok := s.clientSessions[address]
	if !ok {
		return ErrClientDoesNotExist
	}

	if _, err := client.conn.Write(payload); err != nil {
		delete(s.clientSessions, address)
		return fmt.Errorf("unable to send report: %w", err)
	}
	return nil
}

// sessionHandler reads off incoming messages from clients and handles high-level
// session logic. Messages are received from the pool of workers.
func (s *Server) sessionHandler(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case message := <-s.clientMessages:
			s.handleMessage(message)
		}
	}
}

func (s *Server) handleMessage(message ClientMessage) {
	switch m := message.message.(type) {
	case NewOrderMessage:
		// Remember who sits behind this owner before placing, so that
		// both rejections and fills can be routed back.
		s.registerOwner(m.Username, message.clientAddress)

		req := m.OrderRequest()
		log.Info().
			Str("order", req.ID).
			Str("owner", req.Owner).
			Str("side", req.Side.String()).
			Uint64("price", req.Price).
			Uint64("size", req.Size).
			Msg("new order")

		// The engine reports trades and rejections back through us.
		_ = s.engine.PlaceOrder(req)

	case BaseMessage:
		switch m.GetType() {
		case Heartbeat:
			// Keepalive only.
		case BookQuery:
			bids, asks := s.engine.Depth()
			report := generateWireBookReport(
				s.engine.BestBid(), s.engine.BestAsk(), len(bids), len(asks),
			)
			if err := s.sendToAddress(message.clientAddress, report); err != nil {
				log.Warn().Err(err).Msg("book report not delivered")
			}
		}
	}
}

func (s *Server) sendToAddress(address string, payload []byte) error {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	client, ok := s.clientSessions[address]
	if !ok {
		return ErrClientDoesNotExist
	}
	if _, err := client.conn.Write(payload); err != nil {
		delete(s.clientSessions, address)
		return fmt.Errorf("unable to send report: %w", err)
	}
	return nil
}

// handleConnection is a short-lived worker method which reads the next message off the
// connection, parses and passes it forward to sessionHandler to handle it. If the connection
// dies, the client session is cleaned up. This method does not lock any client session
// directly and gives up early if the connection is terminated. Therefore this method is
// thread safe on map accesses.
// Note, any error returned from here is fatal.
func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	conn, ok := task.(net.Conn)
	if !ok {
		return ErrImproperConversion
	}

	// Set max read timeout.
	if err := conn.SetReadDeadline(time.Now().Add(defaultConnTimeout)); err != nil {
		log.Error().
			Str("address", conn.RemoteAddr().String()).
			Err(err).
			Msg("failed setting deadline for connection")
		return nil
	}

	buffer := make([]byte, MAX_RECV_SIZE)
	select {
	case <-t.Dying():
		return nil
	default:
		n, err := conn.Read(buffer)
		if err != nil {
			log.Info().
				Err(err).
				Str("address", conn.RemoteAddr().String()).
				Msg("connection closed")

			// If a read from a client fails, it is likely that the client
			// has exited. Clean up the client session.
			s.deleteClientSession(conn.RemoteAddr().String())
			if cerr := conn.Close(); cerr != nil {
				log.Error().Str("address", conn.RemoteAddr().String()).Err(cerr).Msg("close failed")
			}
			return nil
		}

		message, err := parseMessage(buffer[:n])
		if err != nil {
			log.Error().
				Err(err).
				Str("address", conn.RemoteAddr().String()).
				Msg("error parsing message")
		} else {
			// Pass over to the message handling buffer and exit this worker.
			s.clientMessages <- ClientMessage{
				message:       message,
				clientAddress: conn.RemoteAddr().String(),
			}
		}

		// Push the client connection back to handle the next message.
		s.pool.AddTask(conn)
	}
	return nil
}

// addClientSession is an atomic map add
func (s *Server) addClientSession(conn net.Conn) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	s.clientSessions[conn.RemoteAddr().String()] = ClientSession{
		conn: conn,
	}
}

// deleteClientSession is an atomic map remove
func (s *Server) deleteClientSession(address string) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	delete(s.clientSessions, address)
}

// registerOwner is an atomic owner to address map update
func (s *Server) registerOwner(owner, address string) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	s.ownerAddresses[owner] = address
}
