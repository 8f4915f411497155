// irimager - camera sessions for radiometric thermal imagers
//  Copyright (C) 2026, The Cacophony Project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package stream

import (
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"gopkg.in/tomb.v2"

	"github.com/TheCacophonyProject/irimager/frame"
	"github.com/TheCacophonyProject/irimager/headers"
)

const writeTimeout = 2 * time.Second

// Server sends the frames it is given to every connected client. Each
// client has its own one frame queue, so a slow client skips frames
// without holding up the others. Server is a session consumer.
type Server struct {
	info    *headers.HeaderInfo
	t       tomb.Tomb
	serving atomic.Bool

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn   net.Conn
	frames chan *frame.Frame
}

func NewServer(info *headers.HeaderInfo) *Server {
	return &Server{
		info:    info,
		clients: make(map[*client]struct{}),
	}
}

// Serve accepts clients on l until Close is called. It closes l.
func (s *Server) Serve(l net.Listener) error {
	s.serving.Store(true)
	s.t.Go(func() error {
		s.t.Go(func() error {
			<-s.t.Dying()
			l.Close()
			s.mu.Lock()
			for c := range s.clients {
				c.conn.Close()
			}
			s.mu.Unlock()
			return nil
		})
		for {
			conn, err := l.Accept()
			if err != nil {
				if !s.t.Alive() {
					return nil
				}
				return err
			}
			s.add(conn)
		}
	})
	return s.t.Wait()
}

// Close disconnects all clients and stops Serve.
func (s *Server) Close() error {
	s.t.Kill(nil)
	if !s.serving.Load() {
		return nil
	}
	return s.t.Wait()
}

func (s *Server) add(conn net.Conn) {
	c := &client{
		conn:   conn,
		frames: make(chan *frame.Frame, 1),
	}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	log.Printf("stream client connected: %v", conn.RemoteAddr())
	s.t.Go(func() error {
		s.serveClient(c)
		return nil
	})
}

func (s *Server) serveClient(c *client) {
	defer func() {
		s.mu.Lock()
		delete(s.clients, c)
		s.mu.Unlock()
		c.conn.Close()
	}()

	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	enc, err := NewEncoder(c.conn, s.info)
	if err != nil {
		log.Printf("stream client %v: %v", c.conn.RemoteAddr(), err)
		return
	}
	for {
		select {
		case <-s.t.Dying():
			return
		case f := <-c.frames:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := enc.Encode(f); err != nil {
				log.Printf("stream client %v gone: %v", c.conn.RemoteAddr(), err)
				return
			}
		}
	}
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// OnFrame queues f for every client.
func (s *Server) OnFrame(f *frame.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case <-c.frames:
		default:
		}
		c.frames <- f
	}
}

func (s *Server) OnError(err error) {
	log.Printf("camera error: %v", err)
}
