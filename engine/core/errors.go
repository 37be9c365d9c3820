package core

import (
	"errors"
)

var (
	ErrSwapchainBooting   = errors.New("swapchain resized or recreated, booting")
	ErrBackendUnavailable = errors.New("no graphics backend registered for device type")
	ErrDeviceClosed       = errors.New("graphics device is closed")
	ErrInvalidDesc        = errors.New("invalid resource description")
	ErrUnsupportedFormat  = errors.New("unsupported graphics format")
	ErrFramebufferSetup   = errors.New("framebuffer setup failed")
	ErrControllerOverflow = errors.New("scene controller ids exhausted")
	ErrInvalidController  = errors.New("invalid scene controller id")
	ErrLiveControllers    = errors.New("scene controller ids still live")
	ErrLiveObjects        = errors.New("scene objects still live")
	ErrStaleGeneration    = errors.New("scene object from a previous generation")
	ErrAssetNotFound      = errors.New("asset not found")
	ErrUnknown            = errors.New("unknown")
)
