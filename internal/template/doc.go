// Package template resolves recipient profile tokens in message text and in
// arbitrary JSON-shaped values.
//
// Recognized token forms for a profile field "first_name":
//
//	{{first_name}}  {first_name}  {contactfield=first_name}  {{contactfield=first_name}}
//
// Each field is also reachable through its lowercase key and its lowercase
// key with underscores removed ({{firstname}}). Replacement is literal;
// tokens without a matching field are left untouched.
package template
