package server

import (
	"context"
	"fmt"

	"github.com/Beykus-Y/mcp-agent/internal/game/character"
	"github.com/Beykus-Y/mcp-agent/internal/game/fog"
	"github.com/Beykus-Y/mcp-agent/internal/game/rules"
	"github.com/Beykus-Y/mcp-agent/internal/game/wire"
)

// handlerFunc mutates state for one command. Returning an error sends an
// error frame to the issuing player only; the session stays up. changed
// reports whether the world must be broadcast. A non-nil relay frame is
// fanned out verbatim after the lock is released, still inside dispatch, so
// one session's frames keep their arrival order.
type handlerFunc func(ctx context.Context, s *Server, sess *session, env wire.Envelope) (changed bool, relay *wire.Envelope, err error)

// commandHandlers is the full post-login command vocabulary.
func commandHandlers() map[string]handlerFunc {
	return map[string]handlerFunc{
		wire.TypePlayerMove:       handleMove,
		wire.TypeEquipItem:        handleEquip,
		wire.TypeUnequipItem:      handleUnequip,
		wire.TypeUseItem:          handleUse,
		wire.TypeDiscardItem:      handleDiscard,
		wire.TypePlayerEnteredPOI: handleEnteredPOI,
		wire.TypeChatMessage:      handleChat,
	}
}

// dispatch routes one frame. Handlers run with the world lock held; the
// broadcast happens after the lock is released.
func (s *Server) dispatch(ctx context.Context, sess *session, env wire.Envelope) {
	h, ok := s.handlers[env.Type]
	if !ok {
		s.logger.Warn("unknown command", "player", sess.playerID, "type", env.Type)
		sess.sendError(fmt.Sprintf("unknown command %q", env.Type))
		s.metrics.RecordGameCommand(ctx, env.Type, "unknown")
		return
	}

	s.mu.Lock()
	changed, relay, err := h(ctx, s, sess, env)
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("command rejected",
			"player", sess.playerID, "type", env.Type, "error", err)
		sess.sendError(err.Error())
		s.metrics.RecordGameCommand(ctx, env.Type, "rejected")
		return
	}
	s.metrics.RecordGameCommand(ctx, env.Type, "ok")
	if changed {
		s.broadcast(ctx)
	}
	if relay != nil {
		s.broadcastEnvelope(*relay)
	}
}

func handleMove(_ context.Context, s *Server, sess *session, env wire.Envelope) (bool, *wire.Envelope, error) {
	var mv wire.PlayerMove
	if err := wire.DecodeData(env, &mv); err != nil {
		return false, nil, err
	}
	if mv.DX < -1 || mv.DX > 1 || mv.DY < -1 || mv.DY > 1 {
		return false, nil, fmt.Errorf("move step (%d,%d) exceeds one cell", mv.DX, mv.DY)
	}

	char := sess.char
	nx, ny := char.Position[0]+mv.DX, char.Position[1]+mv.DY
	if !s.world.InBounds(nx, ny) {
		return false, nil, fmt.Errorf("position (%d,%d) is outside the map", nx, ny)
	}
	if !s.world.Passable(nx, ny) {
		return false, nil, fmt.Errorf("cannot enter %s at (%d,%d)", s.world.BiomeAt(nx, ny), nx, ny)
	}

	char.Position = [2]int{nx, ny}
	fog.Reveal(char.DiscoveredCells, nx, ny, s.world.Width(), s.world.Height())
	return true, nil, nil
}

func handleEquip(_ context.Context, _ *Server, sess *session, env wire.Envelope) (bool, *wire.Envelope, error) {
	var eq wire.EquipItem
	if err := wire.DecodeData(env, &eq); err != nil {
		return false, nil, err
	}
	char := sess.char

	idx := char.InventoryIndex(eq.ItemID)
	if idx < 0 {
		return false, nil, fmt.Errorf("item %s is not in the inventory", eq.ItemID)
	}
	item := char.Inventory[idx]
	if item.Slot == character.SlotConsumable || item.Slot == character.SlotMisc {
		return false, nil, fmt.Errorf("item %s cannot be equipped", item.Name)
	}

	// Swap is atomic under the world lock: the occupant returns to the
	// inventory in the same step the new item leaves it.
	if occupant, ok := char.Equipment[item.Slot]; ok {
		char.Inventory = append(char.Inventory, occupant)
	}
	char.RemoveInventoryAt(idx)
	char.Equipment[item.Slot] = item
	return true, nil, nil
}

func handleUnequip(_ context.Context, _ *Server, sess *session, env wire.Envelope) (bool, *wire.Envelope, error) {
	var uq wire.UnequipItem
	if err := wire.DecodeData(env, &uq); err != nil {
		return false, nil, err
	}
	char := sess.char

	item, ok := char.Equipment[uq.Slot]
	if !ok {
		return false, nil, fmt.Errorf("slot %s is empty", uq.Slot)
	}
	delete(char.Equipment, uq.Slot)
	char.Inventory = append(char.Inventory, item)
	return true, nil, nil
}

func handleUse(_ context.Context, s *Server, sess *session, env wire.Envelope) (bool, *wire.Envelope, error) {
	var use wire.UseItem
	if err := wire.DecodeData(env, &use); err != nil {
		return false, nil, err
	}
	char := sess.char

	idx := char.InventoryIndex(use.ItemID)
	if idx < 0 {
		return false, nil, fmt.Errorf("item %s is not in the inventory", use.ItemID)
	}
	item := char.Inventory[idx]
	if item.Slot != character.SlotConsumable {
		return false, nil, fmt.Errorf("item %s is not a consumable", item.Name)
	}

	if rules.ApplyOnUse(char, item, s.rng) == 0 {
		return false, nil, fmt.Errorf("item %s had no effect", item.Name)
	}
	char.RemoveInventoryAt(idx)
	return true, nil, nil
}

func handleDiscard(_ context.Context, _ *Server, sess *session, env wire.Envelope) (bool, *wire.Envelope, error) {
	var disc wire.DiscardItem
	if err := wire.DecodeData(env, &disc); err != nil {
		return false, nil, err
	}
	char := sess.char

	idx := char.InventoryIndex(disc.ItemID)
	if idx < 0 {
		return false, nil, fmt.Errorf("item %s is not in the inventory", disc.ItemID)
	}
	char.RemoveInventoryAt(idx)
	return true, nil, nil
}

func handleEnteredPOI(ctx context.Context, s *Server, sess *session, env wire.Envelope) (bool, *wire.Envelope, error) {
	var entered wire.PlayerEnteredPOI
	if err := wire.DecodeData(env, &entered); err != nil {
		return false, nil, err
	}
	char := sess.char

	if char.HasVisited(entered.POIID) {
		return false, nil, nil
	}
	poi, ok := s.world.POIByID(entered.POIID)
	if !ok {
		return false, nil, fmt.Errorf("no such place: %s", entered.POIID)
	}

	char.VisitedPOIs = append(char.VisitedPOIs, entered.POIID)
	s.logger.Info("poi discovered", "player", sess.playerID, "poi", poi.Name)

	// The description is written exactly once, on the first visit by anyone.
	// The lock keeps a second visitor from racing the generation.
	if poi.Description == "" {
		poi.Description = s.names.POIDescription(ctx, s.world, poi)
		if err := s.worlds.SaveState(s.world); err != nil {
			s.logger.Error("world save after poi description failed", "error", err)
		}
	}
	return true, nil, nil
}

func handleChat(_ context.Context, _ *Server, sess *session, env wire.Envelope) (bool, *wire.Envelope, error) {
	var msg wire.ChatMessage
	if err := wire.DecodeData(env, &msg); err != nil {
		return false, nil, err
	}
	if msg.Message == "" {
		return false, nil, nil
	}
	if msg.Sender == "" {
		msg.Sender = sess.char.Name
	}

	out, err := wire.Encode(wire.TypeChatMessage, msg)
	if err != nil {
		return false, nil, err
	}
	// Chat never mutates world state; dispatch relays the frame once the
	// lock is released.
	return false, &out, nil
}
