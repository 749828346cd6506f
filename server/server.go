/*******************************************************************************
 * Copyright (c) 2026 Genome Research Ltd.
 *
 * Permission is hereby granted, free of charge, to any person obtaining
 * a copy of this software and associated documentation files (the
 * "Software"), to deal in the Software without restriction, including
 * without limitation the rights to use, copy, modify, merge, publish,
 * distribute, sublicense, and/or sell copies of the Software, and to
 * permit persons to whom the Software is furnished to do so, subject to
 * the following conditions:
 *
 * The above copyright notice and this permission notice shall be included
 * in all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND,
 * EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF
 * MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.
 * IN NO EVENT SHALL THE AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY
 * CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER IN AN ACTION OF CONTRACT,
 * TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN CONNECTION WITH THE
 * SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
 ******************************************************************************/

// Package server exposes the inventory over a read-only JSON API, for
// dashboards and ad-hoc queries while scans continue to run.
package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/inconshreveable/log15"

	"github.com/wtsi-hgi/obsmon/store"
)

const stopTimeout = 10 * time.Second

// Server serves the store's reporting queries over HTTP.
type Server struct {
	db     *store.Store
	router *gin.Engine
	logger log15.Logger
	srv    *http.Server
}

// New creates a Server around the given store. Nothing it serves ever writes.
func New(db *store.Store, logger log15.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		db:     db,
		router: gin.New(),
		logger: logger,
	}

	s.router.Use(gin.Recovery())

	v1 := s.router.Group("/rest/v1")
	v1.GET("/cycles", s.getCycles)
	v1.GET("/taskruns", s.getTaskRuns)
	v1.GET("/files", s.getFiles)
	v1.GET("/files/:id", s.getFile)

	return s
}

// Handler returns the server's routes for serving or testing.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the given address and serves until Stop is called.
func (s *Server) Start(addr string) error {
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 30 * time.Second,
	}

	s.logger.Info("listening", "addr", addr)

	if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}

	return nil
}

// Stop gracefully shuts the server down, letting in-flight requests finish.
func (s *Server) Stop() error {
	if s.srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	return s.srv.Shutdown(ctx)
}

func (s *Server) getCycles(c *gin.Context) {
	cycles, err := s.db.Cycles()
	if err != nil {
		s.fail(c, err)

		return
	}

	c.JSON(http.StatusOK, orEmpty(cycles))
}

func (s *Server) getTaskRuns(c *gin.Context) {
	cycle := -1

	if q := c.Query("cycle"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid cycle"})

			return
		}

		cycle = n
	}

	trs, err := s.db.TaskRuns(c.Query("date"), cycle)
	if err != nil {
		s.fail(c, err)

		return
	}

	c.JSON(http.StatusOK, orEmpty(trs))
}

func (s *Server) getFiles(c *gin.Context) {
	files, err := s.db.Files(c.Query("status"))
	if err != nil {
		s.fail(c, err)

		return
	}

	c.JSON(http.StatusOK, orEmpty(files))
}

func (s *Server) getFile(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid file id"})

		return
	}

	detail, ok, err := s.db.FileByID(id)
	if err != nil {
		s.fail(c, err)

		return
	}

	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "no such file"})

		return
	}

	c.JSON(http.StatusOK, detail)
}

func (s *Server) fail(c *gin.Context, err error) {
	s.logger.Error("query failed", "path", c.Request.URL.Path, "err", err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// orEmpty keeps empty result sets serialising as [] rather than null.
func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}

	return s
}
