package vulkan

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/octoon/engine/core"
	"github.com/spaghettifunk/octoon/engine/hal"
	"golang.org/x/exp/slices"
)

const VALIDATION_LAYER string = "VK_LAYER_KHRONOS_validation"

var (
	loaderOnce sync.Once
	loaderErr  error
)

// loadLoader resolves vkGetInstanceProcAddr, through glfw when a window
// system is up and from the system loader otherwise.
func loadLoader() error {
	loaderOnce.Do(func() {
		if addr := glfw.GetVulkanGetInstanceProcAddress(); addr != nil {
			vk.SetGetInstanceProcAddr(addr)
		} else if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
			loaderErr = fmt.Errorf("failed to load the Vulkan library: %s: %w", err.Error(), core.ErrBackendUnavailable)
			return
		}
		if err := vk.Init(); err != nil {
			loaderErr = fmt.Errorf("failed to initialize vk: %s: %w", err.Error(), core.ErrBackendUnavailable)
		}
	})
	return loaderErr
}

/**
 * @brief Backend owns the Vulkan instance and creates one logical device per
 * CreateDevice call. Instance extensions the window system needs are passed
 * in at construction.
 */
type Backend struct {
	mu            sync.Mutex
	debug         bool
	extensions    []string
	instance      vk.Instance
	debugCallback vk.DebugReportCallback
}

func NewBackend(extensions ...string) *Backend {
	return &Backend{extensions: extensions}
}

// Register adds a Vulkan backend to system under DEVICE_TYPE_VULKAN.
func Register(system *hal.GraphicsSystem, extensions ...string) *Backend {
	b := NewBackend(extensions...)
	system.RegisterBackend(hal.DEVICE_TYPE_VULKAN, b)
	return b
}

// Instance returns the instance created by Open, nil before that.
func (b *Backend) Instance() vk.Instance {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.instance
}

func (b *Backend) Open(debug bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.instance != nil {
		return nil
	}
	if err := loadLoader(); err != nil {
		core.LogError(err.Error())
		return err
	}
	b.debug = debug

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 1, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   safeString("octoon"),
		PEngineName:        safeString("octoon"),
	}

	extensions := []string{"VK_KHR_surface"}
	for _, e := range b.extensions {
		if !slices.Contains(extensions, e) {
			extensions = append(extensions, e)
		}
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}
	if runtime.GOOS == "darwin" {
		extensions = append(extensions, "VK_KHR_portability_enumeration", "VK_KHR_get_physical_device_properties2")
		createInfo.Flags |= 1
	}

	var layers []string
	if debug {
		extensions = append(extensions, vk.ExtDebugReportExtensionName)
		if hasInstanceLayer(VALIDATION_LAYER) {
			layers = append(layers, VALIDATION_LAYER)
		} else {
			core.LogWarn("validation layer %s is not installed, running without it", VALIDATION_LAYER)
		}
	}
	for _, e := range extensions {
		core.LogDebug("vulkan instance extension: %s", e)
	}

	createInfo.EnabledExtensionCount = uint32(len(extensions))
	createInfo.PpEnabledExtensionNames = safeStrings(extensions)
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = safeStrings(layers)

	var instance vk.Instance
	if err := check(vk.CreateInstance(&createInfo, nil, &instance), "vkCreateInstance"); err != nil {
		return err
	}
	if err := vk.InitInstance(instance); err != nil {
		vk.DestroyInstance(instance, nil)
		err = fmt.Errorf("failed to load instance functions: %s: %w", err.Error(), core.ErrBackendUnavailable)
		core.LogError(err.Error())
		return err
	}
	b.instance = instance
	core.LogInfo("vulkan instance created")

	if debug {
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: debugReport,
		}
		var callback vk.DebugReportCallback
		if err := vk.Error(vk.CreateDebugReportCallback(instance, &debugCreateInfo, nil, &callback)); err != nil {
			// validation output is a convenience, the instance is still usable
			core.LogWarn("vk.CreateDebugReportCallback failed with %s", err)
		} else {
			b.debugCallback = callback
		}
	}
	return nil
}

func (b *Backend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.instance == nil {
		return
	}
	if b.debugCallback != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(b.instance, b.debugCallback, nil)
		b.debugCallback = vk.NullDebugReportCallback
	}
	vk.DestroyInstance(b.instance, nil)
	b.instance = nil
	core.LogInfo("vulkan instance destroyed")
}

func (b *Backend) CreateDevice(desc hal.GraphicsDeviceDesc, ref hal.DeviceRef) (hal.GraphicsDevice, error) {
	if desc.DeviceType != hal.DEVICE_TYPE_VULKAN {
		return nil, fmt.Errorf("vulkan backend cannot create %s devices: %w", desc.DeviceType, core.ErrInvalidDesc)
	}
	instance := b.Instance()
	if instance == nil {
		return nil, fmt.Errorf("vulkan backend is not open: %w", core.ErrBackendUnavailable)
	}
	return newDevice(instance, desc, ref, b.debug || desc.EnableDebug)
}

func hasInstanceLayer(name string) bool {
	var count uint32
	if vk.EnumerateInstanceLayerProperties(&count, nil) != vk.Success || count == 0 {
		return false
	}
	layers := make([]vk.LayerProperties, count)
	if vk.EnumerateInstanceLayerProperties(&count, layers) != vk.Success {
		return false
	}
	for i := range layers {
		layers[i].Deref()
		if cString(layers[i].LayerName[:]) == name {
			return true
		}
	}
	return false
}

func debugReport(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("vulkan [%s] code %d: %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit|vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("vulkan [%s] code %d: %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogDebug("vulkan [%s] code %d: %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
