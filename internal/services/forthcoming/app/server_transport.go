package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/forthcoming/forthcoming/internal/platform/errors"
	"github.com/forthcoming/forthcoming/internal/platform/requestctx"
	"github.com/forthcoming/forthcoming/internal/services/forthcoming/domain"
	"github.com/google/uuid"
	"golang.org/x/net/websocket"
)

// NewHandler creates the bridge and operator routes.
func NewHandler(service *Service) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	wsHandler := websocket.Handler(func(conn *websocket.Conn) {
		handleWSConn(conn, service)
	})
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		wsHandler.ServeHTTP(w, r)
	})

	mux.HandleFunc("GET /ledger/{actorID}", func(w http.ResponseWriter, r *http.Request) {
		actor := domain.ActorID(strings.TrimSpace(r.PathValue("actorID")))
		if !actor.Valid() {
			http.Error(w, "actor id is required", http.StatusBadRequest)
			return
		}
		tally, record := service.LedgerView(actor, strings.TrimSpace(r.URL.Query().Get("locale")))
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(ledgerResponse{
			ActorID: actor,
			Entries: tally,
			Total:   tally.Total(),
			Record:  record,
		}); err != nil {
			log.Printf("forthcoming: write ledger response for %q: %v", actor, err)
		}
	})

	return mux
}

func handleWSConn(conn *websocket.Conn, service *Service) {
	if !service.beginConn() {
		_ = conn.Close()
		return
	}
	defer service.endConn()

	peer := newWSPeer(uuid.NewString(), conn)
	defer peer.close()
	service.attachHost(peer)
	defer service.detachHost(peer)
	if service.isDraining() {
		return
	}

	_ = peer.writeFrame(wsFrame{
		Type: "host.hello",
		Payload: mustJSON(helloPayload{
			ConnectionID: peer.id,
			ServerTime:   time.Now().UTC().Format(time.RFC3339),
		}),
	})

	decoder := json.NewDecoder(conn)
	windowStart := time.Now()
	framesInWindow := 0
	decodeErrors := 0

	for {
		var frame wsFrame
		if err := decoder.Decode(&frame); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return
			}
			decodeErrors++
			_ = writeWSError(peer, "", apperrors.New(apperrors.CodeFrameMalformed, "invalid frame payload"))
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			continue
		}
		decodeErrors = 0

		if len(frame.Payload) > maxFramePayloadBytes {
			_ = writeWSError(peer, frame.RequestID, apperrors.New(apperrors.CodeFrameTooLarge, "payload too large"))
			continue
		}

		now := time.Now()
		if now.Sub(windowStart) >= time.Second {
			windowStart = now
			framesInWindow = 0
		}
		framesInWindow++
		if framesInWindow > maxFramesPerSecond {
			_ = writeWSError(peer, frame.RequestID, apperrors.New(apperrors.CodeRateLimited, "rate limit exceeded"))
			return
		}

		ctx := requestctx.WithConnectionID(conn.Request().Context(), peer.id)
		switch frame.Type {
		case "actor.joined":
			handleActorJoinedFrame(service, peer, frame)
		case "actor.left":
			handleActorLeftFrame(ctx, service, peer, frame)
		case "companion.struck":
			handleCompanionStruckFrame(ctx, service, peer, frame)
		case "actor.respawned":
			handleActorRespawnedFrame(ctx, service, peer, frame)
		case "actor.damaged":
			handleActorDamagedFrame(ctx, service, peer, frame)
		default:
			_ = writeWSError(peer, frame.RequestID, apperrors.New(apperrors.CodeFrameUnsupported, "unsupported frame type"))
		}
	}
}

func handleActorJoinedFrame(service *Service, peer *wsPeer, frame wsFrame) {
	var payload actorJoinedPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(peer, frame.RequestID, apperrors.New(apperrors.CodeFrameMalformed, "invalid actor.joined payload"))
		return
	}
	if !payload.ActorID.Valid() {
		_ = writeWSError(peer, frame.RequestID, apperrors.New(apperrors.CodeActorRequired, "actor_id is required"))
		return
	}
	if !service.host.join(peer, payload.ActorID, strings.TrimSpace(payload.Locale)) {
		_ = writeWSError(peer, frame.RequestID, apperrors.New(apperrors.CodeHostReplaced, "connection is no longer the active host"))
		return
	}
	writeAck(peer, frame.RequestID, nil)
}

// activeHost rejects frames from a connection that has been replaced.
func activeHost(service *Service, peer *wsPeer, frame wsFrame) bool {
	if service.host.active(peer) {
		return true
	}
	_ = writeWSError(peer, frame.RequestID, apperrors.New(apperrors.CodeHostReplaced, "connection is no longer the active host"))
	return false
}

func handleActorLeftFrame(ctx context.Context, service *Service, peer *wsPeer, frame wsFrame) {
	if !activeHost(service, peer, frame) {
		return
	}
	var payload actorLeftPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(peer, frame.RequestID, apperrors.New(apperrors.CodeFrameMalformed, "invalid actor.left payload"))
		return
	}
	if !payload.ActorID.Valid() {
		_ = writeWSError(peer, frame.RequestID, apperrors.New(apperrors.CodeActorRequired, "actor_id is required"))
		return
	}
	service.OnActorDisconnected(ctx, payload.ActorID)
	writeAck(peer, frame.RequestID, nil)
}

func handleCompanionStruckFrame(ctx context.Context, service *Service, peer *wsPeer, frame wsFrame) {
	if !activeHost(service, peer, frame) {
		return
	}
	var payload companionStruckPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(peer, frame.RequestID, apperrors.New(apperrors.CodeFrameMalformed, "invalid companion.struck payload"))
		return
	}
	triggered, err := service.OnCompanionStruck(ctx, domain.Blow{
		AttackerID:       payload.AttackerID,
		AttackerIsActor:  payload.AttackerIsActor,
		CompanionTamed:   payload.CompanionTamed,
		CompanionOwnerID: payload.CompanionOwnerID,
		CompanionOwner:   payload.CompanionOwnerName,
		CompanionName:    payload.CompanionName,
		Damage:           payload.Damage,
		CompanionHealth:  payload.CompanionHealth,
	})
	if err != nil {
		_ = writeWSError(peer, frame.RequestID, apperrors.From(err))
		return
	}
	writeAck(peer, frame.RequestID, &triggered)
}

func handleActorRespawnedFrame(ctx context.Context, service *Service, peer *wsPeer, frame wsFrame) {
	if !activeHost(service, peer, frame) {
		return
	}
	var payload actorRespawnedPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(peer, frame.RequestID, apperrors.New(apperrors.CodeFrameMalformed, "invalid actor.respawned payload"))
		return
	}
	if !payload.ActorID.Valid() {
		_ = writeWSError(peer, frame.RequestID, apperrors.New(apperrors.CodeActorRequired, "actor_id is required"))
		return
	}
	location, relocate := service.OnActorRespawned(ctx, payload.ActorID, payload.Location)
	_ = peer.writeFrame(wsFrame{
		Type:      "actor.relocate",
		RequestID: frame.RequestID,
		Payload: mustJSON(relocatePayload{
			ActorID:  payload.ActorID,
			Relocate: relocate,
			Location: location,
		}),
	})
}

func handleActorDamagedFrame(ctx context.Context, service *Service, peer *wsPeer, frame wsFrame) {
	if !activeHost(service, peer, frame) {
		return
	}
	var payload actorDamagedPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(peer, frame.RequestID, apperrors.New(apperrors.CodeFrameMalformed, "invalid actor.damaged payload"))
		return
	}
	if !payload.ActorID.Valid() {
		_ = writeWSError(peer, frame.RequestID, apperrors.New(apperrors.CodeActorRequired, "actor_id is required"))
		return
	}
	_ = peer.writeFrame(wsFrame{
		Type:      "damage.clamped",
		RequestID: frame.RequestID,
		Payload: mustJSON(damageClampedPayload{
			ActorID: payload.ActorID,
			Damage:  service.OnIncomingDamage(ctx, payload.ActorID, payload.Health, payload.Damage),
		}),
	})
}

func writeAck(peer *wsPeer, requestID string, triggered *bool) {
	_ = peer.writeFrame(wsFrame{
		Type:      "host.ack",
		RequestID: requestID,
		Payload: mustJSON(ackEnvelope{
			Result: ackResult{Status: "ok", Triggered: triggered},
		}),
	})
}

func writeWSError(peer *wsPeer, requestID string, err *apperrors.Error) error {
	return peer.writeFrame(wsFrame{
		Type:      "host.error",
		RequestID: requestID,
		Payload: mustJSON(wsErrorEnvelope{
			Error: wsError{
				Code:      err.Code.StatusName(),
				Reason:    string(err.Code),
				Message:   err.Message,
				Retryable: err.Code.Retryable(),
			},
		}),
	})
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("failed to marshal websocket frame payload: %v", err)
		return nil
	}
	return b
}
