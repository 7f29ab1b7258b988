package model

// Movement categories are a closed catalogue; an unknown category is a
// validation failure, not a free-text field.
var Categorias = []string{
	"alquiler",
	"deposito",
	"venta",
	"mantenimiento",
	"proveedores",
	"ajuste",
	"otros",
}

func CategoriaValida(c string) bool {
	for _, cat := range Categorias {
		if cat == c {
			return true
		}
	}
	return false
}
