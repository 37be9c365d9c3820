package hal

type StencilFaceDesc struct {
	Func      CompareFunction
	Ref       uint32
	ReadMask  uint32
	WriteMask uint32
	Fail      StencilOp
	ZFail     StencilOp
	Pass      StencilOp
}

/**
 * @brief Fixed-function render state of a pipeline: rasterizer, blending,
 * depth and stencil.
 */
type GraphicsStateDesc struct {
	CullMode      CullMode
	PolygonMode   PolygonMode
	PrimitiveType PrimitiveType
	FrontFace     FrontFace

	ScissorTestEnable bool
	MultisampleEnable bool
	LineWidth         float32
	ColorWriteMask    ColorWriteMask

	BlendEnable    bool
	BlendOp        BlendOp
	BlendSrc       BlendFactor
	BlendDest      BlendFactor
	BlendAlphaOp   BlendOp
	BlendAlphaSrc  BlendFactor
	BlendAlphaDest BlendFactor

	DepthEnable      bool
	DepthWriteEnable bool
	DepthFunc        CompareFunction
	DepthBiasEnable  bool
	DepthBias        float32
	DepthSlopeScale  float32
	DepthClampEnable bool

	StencilEnable bool
	StencilFront  StencilFaceDesc
	StencilBack   StencilFaceDesc
}

// DefaultStateDesc returns opaque, depth-tested, back-face culled triangles.
func DefaultStateDesc() GraphicsStateDesc {
	stencil := StencilFaceDesc{
		Func:      COMPARE_ALWAYS,
		ReadMask:  0xFFFFFFFF,
		WriteMask: 0xFFFFFFFF,
		Fail:      STENCIL_OP_KEEP,
		ZFail:     STENCIL_OP_KEEP,
		Pass:      STENCIL_OP_KEEP,
	}
	return GraphicsStateDesc{
		CullMode:         CULL_MODE_BACK,
		PolygonMode:      POLYGON_MODE_SOLID,
		PrimitiveType:    PRIMITIVE_TYPE_TRIANGLE_LIST,
		FrontFace:        FRONT_FACE_CCW,
		LineWidth:        1.0,
		ColorWriteMask:   COLOR_WRITE_RGBA,
		BlendOp:          BLEND_OP_ADD,
		BlendSrc:         BLEND_FACTOR_SRC_ALPHA,
		BlendDest:        BLEND_FACTOR_ONE_MINUS_SRC_ALPHA,
		BlendAlphaOp:     BLEND_OP_ADD,
		BlendAlphaSrc:    BLEND_FACTOR_SRC_ALPHA,
		BlendAlphaDest:   BLEND_FACTOR_ONE_MINUS_SRC_ALPHA,
		DepthEnable:      true,
		DepthWriteEnable: true,
		DepthFunc:        COMPARE_LEQUAL,
		StencilFront:     stencil,
		StencilBack:      stencil,
	}
}
