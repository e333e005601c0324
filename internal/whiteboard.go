package internal

// Whiteboard sync: the server keeps the merge-authority copy of the record
// set for late joiners and relays delta batches between members. It never
// interprets record payloads.

func (s *RoomSession) handleWhiteboardJoin(client *Client, username string) {
	present := false
	for _, u := range s.boardViewers {
		if u == username {
			present = true
			break
		}
	}
	if !present {
		s.boardViewers = append(s.boardViewers, username)
	}
	if len(s.board) > 0 {
		records := make([]WhiteboardRecord, 0, len(s.board))
		for _, rec := range s.board {
			records = append(records, rec)
		}
		client.push(EvWhiteboardInit, whiteboardInitPayload{Records: records})
	}
	s.broadcastWhiteboardViewers()
}

// handleWhiteboardLeave drops the viewer but deliberately keeps the record
// set, so drawings survive until the room itself is destroyed.
func (s *RoomSession) handleWhiteboardLeave(username string) {
	kept := s.boardViewers[:0]
	removed := false
	for _, u := range s.boardViewers {
		if u == username {
			removed = true
			continue
		}
		kept = append(kept, u)
	}
	s.boardViewers = kept
	if removed {
		s.broadcastWhiteboardViewers()
	}
}

// handleWhiteboardUpdate merges a delta batch last-writer-wins by record id:
// deleted records are removed, everything else is upserted. The same batch
// (not the full state) is relayed to every other member, tagged with the
// sender so clients can skip their own echo.
func (s *RoomSession) handleWhiteboardUpdate(client *Client, username string, records []WhiteboardRecord) {
	if len(records) == 0 {
		return
	}
	if s.board == nil {
		s.board = make(map[string]WhiteboardRecord)
	}
	for _, rec := range records {
		if rec.ID == "" {
			continue
		}
		if rec.Deleted {
			delete(s.board, rec.ID)
			continue
		}
		s.board[rec.ID] = rec
	}
	s.broadcastExcept(client, EvWhiteboardSync, whiteboardDeltaPayload{Records: records, Username: username})
}

func (s *RoomSession) broadcastWhiteboardViewers() {
	users := append([]string(nil), s.boardViewers...)
	if users == nil {
		users = []string{}
	}
	s.broadcast(EvWhiteboardUsers, whiteboardUsersPayload{Users: users})
}
