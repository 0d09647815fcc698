package gemini

import "fmt"

// TryOnInstruction - 인물 사진(1) + 의상 사진(2) 합성 지시문
const TryOnInstruction = `You are an elite AI Fashion Stylist.
TASK: Perform a photorealistic virtual try-on.
INPUT 1: A person's body/portrait.
INPUT 2: A garment/outfit.

INSTRUCTIONS:
1. Seamlessly overlay the garment from Input 2 onto the person in Input 1.
2. Preserve the person's facial features, skin tone, hair, and original background exactly.
3. Adjust the garment's shape to match the person's pose and body contours.
4. Match the lighting and shadows of the original scene for a natural look.
5. Ensure realistic fabric draping and texture.`

// RefineInstruction - 사용자 수정 요청을 고정 wrapper로 감싼다
func RefineInstruction(request string) string {
	return fmt.Sprintf("Refine the current image based on this request: %s. Maintain the person and the outfit, focus on lighting, background, or artistic style changes.", request)
}
