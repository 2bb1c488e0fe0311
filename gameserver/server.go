// Package gameserver is the per-game HTTP surface described in spec §4.6:
// one independent listener per active game, serving registration,
// local-view, move, and mine endpoints over the game's live session.
// Routing is grounded on gorilla/mux and rs/cors, the pack's HTTP-routing
// and CORS libraries (surfaced via discordwell-OnChainPoker's dependency
// graph), replacing the teacher's single-route JSON-RPC dispatch in
// rpc/handler.go with REST endpoints while keeping that file's
// typed-params-then-typed-response handler shape.
package gameserver

import (
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/tolelom/gamemaster/auth"
	"github.com/tolelom/gamemaster/session"
)

// Status is the per-game snapshot GET /status reports, supplied by the
// caller (the phase state machine owns phase and start time; gameserver
// does not).
type Status struct {
	Phase     string
	StartedAt time.Time
}

// StatusFunc returns the current Status for the game this server serves.
type StatusFunc func() Status

// Server is one game's HTTP listener.
type Server struct {
	gameID   uint64
	contract string
	secret   string
	sess     *session.Session
	status   StatusFunc
	players  func() []string

	httpServer *http.Server
	listener   net.Listener
	tlsEnabled bool
}

// New builds a Server for gameID. secret is the already-derived per-contract
// token-signing secret (config.Config.JWTSecret combined with the contract
// address, see auth.Secret). playersFunc returns the current on-chain
// player set, consulted on every authenticated request per spec §4.9.
func New(gameID uint64, contract, secret string, sess *session.Session, status StatusFunc, playersFunc func() []string) *Server {
	return &Server{
		gameID:   gameID,
		contract: contract,
		secret:   secret,
		sess:     sess,
		status:   status,
		players:  playersFunc,
	}
}

// Listen binds port and begins serving in the background: HTTPS when
// tlsConfig is non-nil, plain HTTP otherwise. It has no fallback path: a
// TLS setup error never reaches Listen and does not lead to plain HTTP.
func (s *Server) Listen(port int, tlsConfig *tls.Config) error {
	addr := fmt.Sprintf(":%d", port)
	router := s.routes()
	handler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		OptionsSuccessStatus: http.StatusOK,
	}).Handler(router)

	s.httpServer = &http.Server{Addr: addr, Handler: handler}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("gameserver: listen %s: %w", addr, err)
	}
	if tlsConfig != nil {
		tlsLn := tls.NewListener(ln, tlsConfig)
		s.listener = tlsLn
		s.tlsEnabled = true
	} else {
		s.listener = ln
	}
	go func() {
		if err := s.httpServer.Serve(s.listener); err != nil && err != http.ErrServerClosed {
			log.Printf("[gameserver] game %d: serve error: %v", s.gameID, err)
		}
	}()
	return nil
}

// TLSEnabled reports whether this listener is serving HTTPS.
func (s *Server) TLSEnabled() bool { return s.tlsEnabled }

// Close shuts the listener down at once, closing open connections too (the
// phase state machine schedules this 15s after COMPLETE, per spec §4.7, so
// clients have that long to finish).
func (s *Server) Close() error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Close()
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/test", s.handleTest).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/players", s.handlePlayers).Methods(http.MethodGet)
	r.HandleFunc("/register", s.handleChallenge).Methods(http.MethodGet)
	r.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	r.Handle("/map", s.authenticated(s.handleMap)).Methods(http.MethodGet)
	r.Handle("/move", s.authenticated(s.handleMove)).Methods(http.MethodPost)
	r.Handle("/mine", s.authenticated(s.handleMine)).Methods(http.MethodPost)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"gameId":        s.gameID,
		"timeRemaining": s.sess.TimeRemaining(time.Now()).Seconds(),
	})
}

func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.status()
	players := s.sess.Players()
	writeJSON(w, http.StatusOK, map[string]any{
		"gameId":        s.gameID,
		"phase":         st.Phase,
		"playerCount":   len(players),
		"startedAt":     st.StartedAt,
		"timeRemaining": s.sess.TimeRemaining(time.Now()).Seconds(),
	})
}

// sanitizedPlayer omits position and current tile per spec §4.6 ("no
// positions or current tile").
type sanitizedPlayer struct {
	Address        string `json:"address"`
	Score          int    `json:"score"`
	MovesRemaining int    `json:"movesRemaining"`
	MinesRemaining int    `json:"minesRemaining"`
}

func (s *Server) handlePlayers(w http.ResponseWriter, r *http.Request) {
	players := s.sess.Players()
	out := make([]sanitizedPlayer, len(players))
	for i, p := range players {
		out[i] = sanitizedPlayer{
			Address:        p.Address,
			Score:          p.Score,
			MovesRemaining: p.MovesRemaining,
			MinesRemaining: p.MinesRemaining,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleChallenge(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	timestamp := now.UnixMilli()
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   auth.BuildChallenge(s.contract, s.gameID, timestamp),
		"timestamp": timestamp,
		"gameId":    s.gameID,
	})
}

type registerRequest struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
	Timestamp int64  `json:"timestamp"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Address == "" || req.Signature == "" || req.Timestamp == 0 {
		writeError(w, http.StatusBadRequest, "address, signature, and timestamp are required")
		return
	}
	if !auth.IsChallengeFresh(req.Timestamp, time.Now()) {
		writeError(w, http.StatusBadRequest, "challenge timestamp expired")
		return
	}
	message := auth.BuildChallenge(s.contract, s.gameID, req.Timestamp)
	players := s.players()

	address, err := auth.Verify(message, req.Signature, req.Address, players)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrNotAPlayer):
			writeError(w, http.StatusForbidden, "address is not a player of this game")
		default:
			writeError(w, http.StatusInternalServerError, "signature verification failed")
		}
		return
	}

	token, expiresIn, err := auth.Mint(s.secret, address, time.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to mint token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":     token,
		"expiresIn": int(expiresIn.Seconds()),
	})
}

type contextKey string

const addressContextKey contextKey = "address"

// authenticated validates the bearer token and re-confirms player
// membership before invoking next (spec §4.9).
func (s *Server) authenticated(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if header == "" || token == header {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		address, err := auth.Validate(s.secret, token, time.Now())
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		isPlayer := false
		for _, p := range s.players() {
			if strings.EqualFold(p, address) {
				isPlayer = true
				break
			}
		}
		if !isPlayer {
			writeError(w, http.StatusForbidden, "no longer a player of this game")
			return
		}
		next(w, r.WithContext(withAddress(r.Context(), address)))
	})
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	address := addressFrom(r.Context())
	view, err := s.sess.View(time.Now(), address)
	if err != nil {
		writeError(w, http.StatusNotFound, "player record not found")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type moveRequest struct {
	Direction string `json:"direction"`
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	address := addressFrom(r.Context())
	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	view, err := s.sess.Move(time.Now(), address, req.Direction)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleMine(w http.ResponseWriter, r *http.Request) {
	address := addressFrom(r.Context())
	result, err := s.sess.Mine(time.Now(), address)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeSessionError(w http.ResponseWriter, err error) {
	switch err {
	case session.ErrUnknownPlayer:
		writeError(w, http.StatusNotFound, err.Error())
	case session.ErrTimerExpired:
		writeError(w, http.StatusBadRequest, "Time expired! Game over.")
	case session.ErrInvalidDirection, session.ErrNoMovesRemaining, session.ErrNoMinesRemaining,
		session.ErrTileDepleted:
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
