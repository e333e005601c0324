package internal

// Voice signaling: the session tracks who is in the call and who should
// initiate each peer link; the actual offer/answer/candidate relay is
// addressed unicast and bypasses the session (see Server.relaySignal).

// handleVoiceJoin adds the connection to the voice roster. The joiner gets
// the list of existing participants and initiates a connection to each;
// existing participants are only notified, so every pair has exactly one
// initiator and duplicate offers cannot happen.
func (s *RoomSession) handleVoiceJoin(client *Client) {
	for _, v := range s.voice {
		if v.client.id == client.id {
			return
		}
	}
	username := s.usernameOf(client)

	others := make([]VoiceParticipant, 0, len(s.voice))
	for _, v := range s.voice {
		others = append(others, VoiceParticipant{ConnID: v.client.id, Username: v.username, Muted: v.muted})
	}
	client.push(EvVoiceUsersList, voiceUsersListPayload{Users: others})

	for _, v := range s.voice {
		v.client.push(EvVoiceUserJoined, voicePeerPayload{ConnID: client.id, Username: username})
	}

	s.voice = append(s.voice, voiceMember{client: client, username: username})
	s.broadcastVoiceRoster()
}

// handleVoiceLeave removes the connection from the call, tells the remaining
// participants which peer link to tear down, and re-broadcasts the roster.
// Not being in the call is a no-op, which also makes disconnect idempotent.
func (s *RoomSession) handleVoiceLeave(client *Client) {
	kept := s.voice[:0]
	leftUsername := ""
	found := false
	for _, v := range s.voice {
		if v.client.id == client.id {
			leftUsername = v.username
			found = true
			continue
		}
		kept = append(kept, v)
	}
	if !found {
		return
	}
	s.voice = kept
	for _, v := range s.voice {
		v.client.push(EvVoiceUserLeft, voicePeerPayload{ConnID: client.id, Username: leftUsername})
	}
	s.broadcastVoiceRoster()
	if len(s.voice) == 0 {
		s.voice = nil
	}
}

func (s *RoomSession) handleVoiceMute(client *Client, muted bool) {
	for i := range s.voice {
		if s.voice[i].client.id == client.id {
			s.voice[i].muted = muted
			s.broadcast(EvVoiceMuteChanged, muteChangedPayload{Username: s.voice[i].username, Muted: muted})
			return
		}
	}
}

// broadcastVoiceRoster publishes the public call roster (no connection ids)
// to the whole room, callers and spectators alike.
func (s *RoomSession) broadcastVoiceRoster() {
	roster := make([]voiceRosterEntry, 0, len(s.voice))
	for _, v := range s.voice {
		roster = append(roster, voiceRosterEntry{Username: v.username, Muted: v.muted})
	}
	s.broadcast(EvVoiceUsers, voiceUsersPayload{Users: roster})
}
