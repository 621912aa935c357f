// Package gpu creates GPU buffer objects for compiled vertex arrays on an
// OpenGL context.
package gpu

import (
	"fmt"
	"runtime"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/Faultbox/octabuild/internal/logger"
)

func init() {
	// OpenGL calls must be made from the main thread
	runtime.LockOSThread()
}

// Config holds context configuration.
type Config struct {
	Width  int
	Height int
}

// Context is a hidden SDL2 window holding an OpenGL 4.1 core context. The
// compiler only uploads buffers, so nothing is ever shown.
type Context struct {
	window    *sdl.Window
	glContext sdl.GLContext
}

// NewContext initializes SDL2 video and creates the GL context.
func NewContext(cfg Config) (*Context, error) {
	logger.Debug("initializing SDL2")
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, fmt.Errorf("SDL_Init failed: %w", err)
	}

	// We want OpenGL 4.1 Core Profile (max supported on macOS)
	sdl.GLSetAttribute(sdl.GL_CONTEXT_MAJOR_VERSION, 4)
	sdl.GLSetAttribute(sdl.GL_CONTEXT_MINOR_VERSION, 1)
	sdl.GLSetAttribute(sdl.GL_CONTEXT_PROFILE_MASK, sdl.GL_CONTEXT_PROFILE_CORE)

	c := &Context{}
	var err error
	c.window, err = sdl.CreateWindow(
		"octabuild",
		sdl.WINDOWPOS_UNDEFINED,
		sdl.WINDOWPOS_UNDEFINED,
		int32(max(cfg.Width, 1)),
		int32(max(cfg.Height, 1)),
		uint32(sdl.WINDOW_OPENGL|sdl.WINDOW_HIDDEN),
	)
	if err != nil {
		sdl.Quit()
		return nil, fmt.Errorf("SDL_CreateWindow failed: %w", err)
	}

	c.glContext, err = c.window.GLCreateContext()
	if err != nil {
		c.window.Destroy()
		sdl.Quit()
		return nil, fmt.Errorf("SDL_GL_CreateContext failed: %w", err)
	}

	if err := gl.Init(); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}

	logger.Info("OpenGL initialized",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
	)
	return c, nil
}

// Close destroys the context and the window and shuts SDL2 down.
func (c *Context) Close() {
	logger.Debug("closing GL context")
	if c.glContext != nil {
		sdl.GLDeleteContext(c.glContext)
		c.glContext = nil
	}
	if c.window != nil {
		c.window.Destroy()
		c.window = nil
	}
	sdl.Quit()
}
